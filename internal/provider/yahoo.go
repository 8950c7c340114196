package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/alphastream-pipeline/internal/models"
)

// ErrMalformedResponse is returned when the provider payload lacks the arrays a daily series needs
var ErrMalformedResponse = errors.New("malformed provider response")

// DefaultLookback is the trailing window fetched when no start date is given
const DefaultLookback = 2 * 365 * 24 * time.Hour

const userAgent = "Mozilla/5.0 (compatible; alphastream/1.0)"

// Bar is one validated daily observation from the provider
type Bar struct {
	Date     time.Time `validate:"required"`
	AdjClose float64   `validate:"gt=0"`
	Volume   int64     `validate:"gte=0"`
}

// History is a ticker's daily series as returned by the provider
type History struct {
	Ticker      string
	CompanyName string
	Bars        []Bar
	// Rejected counts rows dropped for null or invalid values
	Rejected int
}

// Prices converts the bars to storable rows. AssetID is left for the store to fill.
func (h *History) Prices() []models.DailyPrice {
	out := make([]models.DailyPrice, 0, len(h.Bars))
	for _, b := range h.Bars {
		out = append(out, models.DailyPrice{
			Date:          models.TradeDate(b.Date),
			AdjClosePrice: decimal.NewFromFloat(b.AdjClose).Round(4),
			Volume:        b.Volume,
		})
	}
	return out
}

// Client fetches daily history from a Yahoo Finance style chart endpoint
type Client struct {
	baseURL    string
	httpClient *http.Client
	validate   *validator.Validate
}

// NewClient creates a provider client. An empty baseURL selects Yahoo Finance.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://query1.finance.yahoo.com"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol    string `json:"symbol"`
				LongName  string `json:"longName"`
				ShortName string `json:"shortName"`
			} `json:"meta"`
			Timestamps []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchDaily fetches daily bars for ticker between from and to (inclusive).
// A zero from selects the trailing DefaultLookback.
func (c *Client) FetchDaily(ctx context.Context, ticker string, from, to time.Time) (*History, error) {
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.Add(-DefaultLookback)
	}

	q := url.Values{}
	q.Set("period1", strconv.FormatInt(from.Unix(), 10))
	q.Set("period2", strconv.FormatInt(to.Unix(), 10))
	q.Set("interval", "1d")
	q.Set("events", "div,splits")
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(ticker), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", ticker, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("failed to read response for %s: %w", ticker, err)
	}

	var payload chartResponse
	decodeErr := json.Unmarshal(body, &payload)

	// Unknown symbols come back as 404 with a chart error body; treat them as empty history.
	if decodeErr == nil && payload.Chart.Error != nil {
		if payload.Chart.Error.Code == "Not Found" {
			return &History{Ticker: ticker}, nil
		}
		return nil, fmt.Errorf("provider error for %s: %s: %s", ticker, payload.Chart.Error.Code, payload.Chart.Error.Description)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned status %d for %s", resp.StatusCode, ticker)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, decodeErr)
	}

	return c.parse(ticker, &payload)
}

func (c *Client) parse(ticker string, payload *chartResponse) (*History, error) {
	if len(payload.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: no chart result for %s", ErrMalformedResponse, ticker)
	}
	r := payload.Chart.Result[0]

	h := &History{Ticker: ticker, CompanyName: r.Meta.LongName}
	if h.CompanyName == "" {
		h.CompanyName = r.Meta.ShortName
	}
	if len(r.Timestamps) == 0 {
		return h, nil
	}

	if len(r.Indicators.AdjClose) == 0 || len(r.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: %s missing adjclose or quote arrays", ErrMalformedResponse, ticker)
	}
	adj := r.Indicators.AdjClose[0].AdjClose
	vol := r.Indicators.Quote[0].Volume
	if len(adj) != len(r.Timestamps) || len(vol) != len(r.Timestamps) {
		return nil, fmt.Errorf("%w: %s has %d timestamps, %d adjclose, %d volume",
			ErrMalformedResponse, ticker, len(r.Timestamps), len(adj), len(vol))
	}

	seen := make(map[time.Time]int, len(r.Timestamps))
	for i, ts := range r.Timestamps {
		if adj[i] == nil {
			h.Rejected++
			continue
		}
		b := Bar{Date: models.TradeDate(time.Unix(ts, 0).UTC()), AdjClose: *adj[i]}
		if vol[i] != nil {
			b.Volume = *vol[i]
		}
		if err := c.validate.Struct(b); err != nil {
			h.Rejected++
			continue
		}
		// Intraday rows for the current session share a date with the last close; keep the latest.
		if idx, ok := seen[b.Date]; ok {
			h.Bars[idx] = b
			continue
		}
		seen[b.Date] = len(h.Bars)
		h.Bars = append(h.Bars, b)
	}
	return h, nil
}
