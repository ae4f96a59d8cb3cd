package marketdata

import (
	"context"
	"strings"
	"time"

	alpacadata "github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

// AlpacaProvider reads daily bars from the Alpaca market data API.
type AlpacaProvider struct {
	client *alpacadata.Client
	feed   alpacadata.Feed
	now    func() time.Time
}

func NewAlpacaProvider(apiKey, apiSecret, baseURL, feed string) *AlpacaProvider {
	opts := alpacadata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	}
	return &AlpacaProvider{
		client: alpacadata.NewClient(opts),
		feed:   parseFeed(feed),
		now:    time.Now,
	}
}

func (p *AlpacaProvider) FetchBars(ctx context.Context, symbol string, limit int) ([]Bar, error) {
	if limit <= 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	end := p.now().UTC()
	// Weekends and holidays: ask for roughly twice the trading days needed.
	start := end.AddDate(0, 0, -(limit*2 + 10))
	bars, err := p.client.GetBars(symbol, alpacadata.GetBarsRequest{
		TimeFrame: alpacadata.OneDay,
		Start:     start,
		End:       end,
		Feed:      p.feed,
	})
	if err != nil {
		return nil, &FetchError{Provider: "alpaca", Symbol: symbol, Err: err}
	}
	out := make([]Bar, 0, len(bars))
	for _, b := range bars {
		out = append(out, Bar{
			Timestamp: b.Timestamp,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    float64(b.Volume),
		})
	}
	return lastN(out, limit), nil
}

func parseFeed(feed string) alpacadata.Feed {
	switch strings.ToLower(strings.TrimSpace(feed)) {
	case "sip":
		return alpacadata.SIP
	default:
		return alpacadata.IEX
	}
}
