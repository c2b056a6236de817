package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
)

var reservationCategories = []string{"Daily", "Weekend", "Weekly", "Airport transfer", "Long term"}

var maintenanceCategories = []string{"Oil change", "Tyre rotation", "Brake inspection", "Battery check", "Annual service"}

// recordInput is the write payload accepted by the record endpoints.
type recordInput struct {
	SubjectID string `json:"subjectId,omitempty"`
	Category  string `json:"category,omitempty"`
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
	Status    string `json:"status,omitempty"`
}

// recordRef is the part of a stored record the simulator tracks.
type recordRef struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Version int64  `json:"version"`
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAPIClient(baseURL, token string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *apiClient) send(ctx context.Context, method, path string, body interface{}, header http.Header) (*recordRef, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.StatusCode >= 300 || !env.Success {
		return nil, fmt.Errorf("%s %s failed with status %d: %s", method, path, resp.StatusCode, env.Message)
	}

	var ref recordRef
	if err := json.Unmarshal(env.Data, &ref); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return &ref, nil
}

// createRecord posts a new record to collection.
func (c *apiClient) createRecord(ctx context.Context, collection string, in recordInput) (*recordRef, error) {
	return c.send(ctx, http.MethodPost, "/"+collection, in, nil)
}

// advance moves a record to status, guarded by the version the simulator last saw.
func (c *apiClient) advance(ctx context.Context, collection string, ref *recordRef, status string) (*recordRef, error) {
	header := http.Header{}
	header.Set("If-Match", strconv.Quote(strconv.FormatInt(ref.Version, 10)))
	return c.send(ctx, http.MethodPut, "/"+collection+"/"+ref.ID, recordInput{Status: status}, header)
}

// nextStatus returns the status that follows current, or "" once the record is finished.
func nextStatus(current string) string {
	switch current {
	case "Pending":
		return "Active"
	case "Active":
		return "Completed"
	default:
		return ""
	}
}

func randomInput(collection, vehicleID string, now time.Time) recordInput {
	categories := reservationCategories
	maxDays := 14
	if collection == "maintenance" {
		categories = maintenanceCategories
		maxDays = 3
	}
	start := now.AddDate(0, 0, rand.Intn(30))
	end := start.AddDate(0, 0, 1+rand.Intn(maxDays))
	return recordInput{
		SubjectID: vehicleID,
		Category:  categories[rand.Intn(len(categories))],
		StartDate: start.Format("2006-01-02"),
		EndDate:   end.Format("2006-01-02"),
	}
}

// vehicleSim drives one vehicle through a sequence of records.
type vehicleSim struct {
	client     *apiClient
	vehicleID  string
	collection string
	current    *recordRef
	now        func() time.Time
}

// step either opens a new record or advances the open one.
func (v *vehicleSim) step(ctx context.Context) error {
	logger := log.WithFields(log.Fields{"vehicle_id": v.vehicleID, "collection": v.collection})

	if v.current == nil {
		ref, err := v.client.createRecord(ctx, v.collection, randomInput(v.collection, v.vehicleID, v.now()))
		if err != nil {
			return err
		}
		v.current = ref
		logger.WithField("record_id", ref.ID).Info("Created record")
		return nil
	}

	next := nextStatus(v.current.Status)
	if next == "" {
		v.current = nil
		return nil
	}
	ref, err := v.client.advance(ctx, v.collection, v.current, next)
	if err != nil {
		// Drop the record so the next tick starts fresh.
		v.current = nil
		return err
	}
	logger.WithFields(log.Fields{"record_id": ref.ID, "status": ref.Status}).Info("Advanced record")
	if nextStatus(ref.Status) == "" {
		v.current = nil
	} else {
		v.current = ref
	}
	return nil
}

func (v *vehicleSim) run(ctx context.Context, interval time.Duration) {
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if err := v.step(ctx); err != nil {
				log.WithError(err).WithField("vehicle_id", v.vehicleID).Warn("Simulation step failed")
			}
		}
	}
}

// parseVehicleIDs splits a comma separated list, dropping blanks.
func parseVehicleIDs(value string) []string {
	var ids []string
	for _, id := range strings.Split(value, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func tickInterval(value string) time.Duration {
	if n, err := strconv.Atoi(value); err == nil && n >= 1 {
		return time.Duration(n) * time.Second
	}
	return 2 * time.Second
}

func main() {
	apiURL := os.Getenv("API_BASE_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080/api"
	}
	vehicleIDs := parseVehicleIDs(os.Getenv("VEHICLE_IDS"))
	interval := tickInterval(os.Getenv("SIM_TICK_SECONDS"))

	if len(vehicleIDs) == 0 {
		log.Error("VEHICLE_IDS is empty. Provide a comma separated list of vehicle ids. Exiting.")
		return
	}

	log.WithFields(log.Fields{
		"vehicles": len(vehicleIDs),
		"api_url":  apiURL,
		"interval": interval,
	}).Info("Starting rental simulation")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := newAPIClient(apiURL, os.Getenv("SIM_AUTH_TOKEN"))
	for i, id := range vehicleIDs {
		collection := "reservations"
		if i%3 == 2 {
			collection = "maintenance"
		}
		sim := &vehicleSim{client: client, vehicleID: id, collection: collection, now: time.Now}
		go sim.run(ctx, interval)
	}

	<-ctx.Done()
	log.Info("Rental simulation stopped")
}
