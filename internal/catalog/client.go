package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pharmakart/orderflow/internal/circuitbreaker"
)

// Client fetches medicine snapshots from the catalog service over HTTP.
// Calls go through a circuit breaker so a flapping catalog fails fast
// instead of stalling every order creation.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	logger     *logrus.Logger
}

func NewClient(baseURL string, logger *logrus.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		breaker: circuitbreaker.New(circuitbreaker.Config{
			Name:        "catalog",
			MaxFailures: 5,
			Timeout:     30 * time.Second,
			MaxRequests: 2,
		}, logger),
		logger: logger,
	}
}

func (c *Client) ResolveMedicine(ctx context.Context, medicineID string) (*Medicine, error) {
	var med *Medicine
	var notFound bool

	// A 404 is a valid answer, not a catalog outage; it must not trip the
	// breaker, so it is reported through notFound instead of an error.
	err := c.breaker.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/medicines/"+medicineID, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to reach catalog: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			notFound = true
			return nil
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("catalog returned error status: %d", resp.StatusCode)
		}

		var decoded Medicine
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return fmt.Errorf("failed to decode catalog response: %w", err)
		}
		med = &decoded
		return nil
	})
	if err != nil {
		c.logger.WithError(err).WithField("medicine_id", medicineID).Error("Catalog lookup failed")
		return nil, err
	}
	if notFound {
		return nil, ErrMedicineNotFound
	}

	c.logger.WithFields(logrus.Fields{
		"medicine_id": medicineID,
		"seller_id":   med.SellerID,
		"active":      med.IsActive,
	}).Debug("Resolved medicine from catalog")

	return med, nil
}
