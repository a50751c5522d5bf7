package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/ksred/tradeshield-api/internal/auth"
	"github.com/ksred/tradeshield-api/internal/types"
)

const (
	minOrders     = 15
	maxOrders     = 120
	numWorkers    = 5
	serverAddress = "http://localhost:8080"
)

var pairs = []struct {
	base, quote string
	price       int64
}{
	{"BTC", "USDC", 62000},
	{"ETH", "USDC", 2400},
	{"ATOM", "USDC", 9},
}

var spotTypes = []types.SpotOrderType{
	types.SpotMarketBuy,
	types.SpotLimitBuy,
	types.SpotLimitSell,
	types.SpotStopLoss,
}

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))
	median = rs.durations[len(rs.durations)/2]

	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simulationClient handles HTTP communication with the order engine
type simulationClient struct {
	baseURL   string
	authToken string
	client    *http.Client
	mu        sync.Mutex
	stats     map[string]*routeStats
}

// newSimulationClient authenticates with the API and prepares performance
// tracking
func newSimulationClient() (*simulationClient, error) {
	sc := &simulationClient{
		baseURL: serverAddress,
		client:  &http.Client{Timeout: 10 * time.Second},
		stats: map[string]*routeStats{
			"auth":   {name: "Authentication"},
			"create": {name: "Create Order"},
			"cancel": {name: "Cancel Orders"},
			"get":    {name: "Get Order"},
			"tick":   {name: "Block Tick"},
		},
	}

	start := time.Now()
	body, err := sc.post("/api/v1/auth/token", auth.Credentials{
		APIKey:    auth.TestAPIKey,
		APISecret: auth.TestAPISecret,
	})
	sc.record("auth", start, err)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}

	var envelope struct {
		Data auth.TokenResponse `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}
	sc.authToken = envelope.Data.Token
	return sc, nil
}

func (sc *simulationClient) record(route string, start time.Time, err error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	rs := sc.stats[route]
	rs.addDuration(time.Since(start))
	if err != nil {
		rs.failures++
	}
}

func (sc *simulationClient) post(path string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, sc.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if sc.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+sc.authToken)
	}

	resp, err := sc.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return body, fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, body)
	}
	return body, nil
}

// createSpotOrder submits one randomized spot order and returns its id
func (sc *simulationClient) createSpotOrder() (uint64, error) {
	pair := pairs[rand.Intn(len(pairs))]
	orderType := spotTypes[rand.Intn(len(spotTypes))]
	amount := decimal.NewFromFloat(rand.Float64()*4 + 0.5).Round(4)

	req := types.CreateSpotOrderRequest{
		OrderType:        orderType,
		OrderAmount:      types.NewCoin(pair.base, amount),
		OrderTargetDenom: pair.quote,
	}
	if orderType != types.SpotMarketBuy {
		// Trigger rates scatter around the seeded oracle price
		offset := 1 + (rand.Float64()*0.2 - 0.1)
		req.OrderPrice = types.OrderPrice{
			BaseDenom:  pair.base,
			QuoteDenom: pair.quote,
			Rate:       decimal.NewFromInt(pair.price).Mul(decimal.NewFromFloat(offset)).Round(4),
		}
	}

	start := time.Now()
	body, err := sc.post("/api/v1/orders/spot", req)
	sc.record("create", start, err)
	if err != nil {
		return 0, err
	}

	var envelope struct {
		Data types.SpotOrder `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return 0, err
	}
	return envelope.Data.OrderID, nil
}

func (sc *simulationClient) cancelSpotOrders(orderIDs []uint64) error {
	start := time.Now()
	_, err := sc.post("/api/v1/orders/spot/cancel", types.CancelOrdersRequest{OrderIDs: orderIDs})
	sc.record("cancel", start, err)
	return err
}

func (sc *simulationClient) getSpotOrder(orderID uint64) error {
	start := time.Now()
	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/api/v1/orders/spot/%d", sc.baseURL, orderID), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+sc.authToken)

	resp, err := sc.client.Do(req)
	if err == nil {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode >= 400 {
			err = fmt.Errorf("get order returned %d", resp.StatusCode)
		}
	}
	sc.record("get", start, err)
	return err
}

func (sc *simulationClient) tick() error {
	start := time.Now()
	_, err := sc.post("/api/v1/internal/tick", struct{}{})
	sc.record("tick", start, err)
	return err
}

func (sc *simulationClient) printStats() {
	fmt.Println("\n=== Simulation Results ===")
	for _, key := range []string{"auth", "create", "cancel", "get", "tick"} {
		rs := sc.stats[key]
		if rs.totalCalls == 0 {
			continue
		}
		min, max, mean, median, p95, p99 := rs.calculate()
		fmt.Printf("\n%s (%d calls, %d failures)\n", rs.name, rs.totalCalls, rs.failures)
		fmt.Printf("  min=%v max=%v mean=%v median=%v p95=%v p99=%v\n", min, max, mean, median, p95, p99)
	}
}

func main() {
	sc, err := newSimulationClient()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize simulation client")
	}

	orderCount := rand.Intn(maxOrders-minOrders+1) + minOrders
	log.Info().Int("orders", orderCount).Int("workers", numWorkers).Msg("starting simulation")

	var (
		wg       sync.WaitGroup
		idsMu    sync.Mutex
		orderIDs []uint64
	)

	jobs := make(chan int)
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				id, err := sc.createSpotOrder()
				if err != nil {
					log.Warn().Err(err).Msg("create order failed")
					continue
				}
				idsMu.Lock()
				orderIDs = append(orderIDs, id)
				idsMu.Unlock()

				if err := sc.getSpotOrder(id); err != nil {
					log.Warn().Err(err).Uint64("order_id", id).Msg("get order failed")
				}
			}
		}()
	}

	for i := 0; i < orderCount; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	// Run a few block ticks so pending triggers get evaluated
	for i := 0; i < 5; i++ {
		if err := sc.tick(); err != nil {
			log.Warn().Err(err).Msg("tick failed")
		}
		time.Sleep(200 * time.Millisecond)
	}

	// Cancel a random share of what remains pending
	idsMu.Lock()
	rand.Shuffle(len(orderIDs), func(i, j int) { orderIDs[i], orderIDs[j] = orderIDs[j], orderIDs[i] })
	toCancel := orderIDs[:len(orderIDs)/4]
	idsMu.Unlock()

	for _, id := range toCancel {
		if err := sc.cancelSpotOrders([]uint64{id}); err != nil {
			log.Debug().Err(err).Uint64("order_id", id).Msg("cancel rejected")
		}
	}

	sc.printStats()
}
