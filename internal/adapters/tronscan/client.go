// Package tronscan is the primary ledger-explorer adapter. It reshapes the
// Tronscan API's response envelopes into the engine's Transfer type.
package tronscan

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/vend-service/vend_service/internal/domain/entities"
	apperrors "github.com/vend-service/vend_service/pkg/errors"
	"github.com/vend-service/vend_service/pkg/logger"
	"github.com/vend-service/vend_service/pkg/retry"
)

const (
	defaultBaseURL = "https://apilist.tronscanapi.com"
	defaultTimeout = 10 * time.Second
	sourceName     = "tronscan"

	// Native TRX amounts carry six implied decimal places.
	trxDecimals = 6
)

// Config represents Tronscan API configuration.
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	PageSize int

	// Address is the receiving address all queries are scoped to.
	Address string
	// Contract selects TRC-20 mode when set; empty means native TRX.
	Contract string
}

// Client queries the Tronscan API for recent transfers to the receiving
// address. Calls go through a circuit breaker and bounded retries so a
// flaky explorer degrades to an empty cycle instead of stalling the loop.
type Client struct {
	config         Config
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker
	logger         *logger.Logger
}

// NewClient creates a new Tronscan API client.
func NewClient(config Config, log *logger.Logger) *Client {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.PageSize <= 0 {
		config.PageSize = 20
	}

	st := gobreaker.Settings{
		Name:     "TronscanAPI",
		Interval: 30 * time.Second,
		Timeout:  60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Info("Circuit breaker state changed",
				"name", name, "from", from.String(), "to", to.String())
		},
	}

	return &Client{
		config:         config,
		httpClient:     &http.Client{Timeout: config.Timeout},
		circuitBreaker: gobreaker.NewCircuitBreaker(st),
		logger:         log,
	}
}

// Name identifies this source in logs and metrics.
func (c *Client) Name() string {
	return sourceName
}

// FetchRecent returns a fresh, most-recent-first snapshot of transfers to
// the configured address.
func (c *Client) FetchRecent(ctx context.Context) ([]entities.Transfer, error) {
	result, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		var transfers []entities.Transfer
		err := retry.WithExponentialBackoff(ctx, retry.DefaultConfig(), func() error {
			var fetchErr error
			if c.config.Contract != "" {
				transfers, fetchErr = c.fetchTRC20(ctx)
			} else {
				transfers, fetchErr = c.fetchNative(ctx)
			}
			return fetchErr
		}, nil)
		return transfers, err
	})
	if err != nil {
		return nil, apperrors.Transient("tronscan fetch", err)
	}
	return result.([]entities.Transfer), nil
}

func (c *Client) fetchTRC20(ctx context.Context) ([]entities.Transfer, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(c.config.PageSize))
	query.Set("start", "0")
	query.Set("sort", "-timestamp")
	query.Set("toAddress", c.config.Address)
	query.Set("contract_address", c.config.Contract)

	var envelope trc20TransferList
	if err := c.doRequest(ctx, "/api/token_trc20/transfers", query, &envelope); err != nil {
		return nil, err
	}

	transfers := make([]entities.Transfer, 0, len(envelope.TokenTransfers))
	for _, t := range envelope.TokenTransfers {
		if t.TransactionID == "" {
			c.logger.Warn("Skipping transfer without transaction id", "source", sourceName)
			continue
		}
		transfers = append(transfers, entities.Transfer{
			ID:         t.TransactionID,
			From:       t.FromAddress,
			To:         t.ToAddress,
			Contract:   t.ContractAddress,
			RawAmount:  t.Quant.String(),
			Decimals:   t.TokenInfo.TokenDecimal,
			ObservedAt: t.BlockTimestamp,
			Source:     sourceName,
		})
	}
	return transfers, nil
}

func (c *Client) fetchNative(ctx context.Context) ([]entities.Transfer, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(c.config.PageSize))
	query.Set("start", "0")
	query.Set("sort", "-timestamp")
	query.Set("count", "true")
	query.Set("address", c.config.Address)

	var envelope transactionList
	if err := c.doRequest(ctx, "/api/transaction", query, &envelope); err != nil {
		return nil, err
	}

	transfers := make([]entities.Transfer, 0, len(envelope.Data))
	for _, tx := range envelope.Data {
		if tx.ContractType != transferContractType {
			continue
		}
		if tx.Hash == "" {
			c.logger.Warn("Skipping transaction without hash", "source", sourceName)
			continue
		}
		transfers = append(transfers, entities.Transfer{
			ID:         tx.Hash,
			From:       tx.OwnerAddress,
			To:         tx.ToAddress,
			RawAmount:  tx.Amount.String(),
			Decimals:   trxDecimals,
			ObservedAt: tx.Timestamp,
			Source:     sourceName,
		})
	}
	return transfers, nil
}

// doRequest performs a GET against the Tronscan API and decodes the body.
func (c *Client) doRequest(ctx context.Context, endpoint string, query url.Values, response interface{}) error {
	fullURL := fmt.Sprintf("%s%s?%s", c.config.BaseURL, endpoint, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("Sending Tronscan API request", "url", fullURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, response); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
