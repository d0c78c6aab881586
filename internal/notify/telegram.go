// Package notify delivers transfer alerts to a Telegram chat.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"solana-transfer-watch/internal/domain"
)

// DefaultBaseURL is the Telegram Bot API host.
const DefaultBaseURL = "https://api.telegram.org"

// Dispatcher formats enriched transfers and delivers them via the Telegram
// Bot API. Delivery is best-effort: callers log and ignore errors.
type Dispatcher struct {
	http        *resty.Client
	botToken    string
	chatID      string
	wallet      string
	tokenName   string
	tokenSymbol string
	bannerPath  string // optional; when set, alerts are sent as photo+caption
	logger      *logrus.Logger
}

// Options contains configuration for creating a Dispatcher.
type Options struct {
	BotToken    string
	ChatID      string
	Wallet      string // monitored wallet, for sell/buy classification
	TokenName   string
	TokenSymbol string
	BannerPath  string
	BaseURL     string // defaults to the public Bot API
	Timeout     time.Duration
	Logger      *logrus.Logger
}

// NewDispatcher creates a Telegram notification dispatcher.
func NewDispatcher(opts Options) *Dispatcher {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Dispatcher{
		http:        resty.New().SetBaseURL(baseURL).SetTimeout(timeout),
		botToken:    opts.BotToken,
		chatID:      opts.ChatID,
		wallet:      opts.Wallet,
		tokenName:   opts.TokenName,
		tokenSymbol: opts.TokenSymbol,
		bannerPath:  opts.BannerPath,
		logger:      logger,
	}
}

// Notify formats and delivers an alert for the transfer. A failed delivery
// is returned as an error but must never cause the transfer to be
// un-persisted or reprocessed.
func (d *Dispatcher) Notify(ctx context.Context, t *domain.Transfer) error {
	message := d.FormatMessage(t)

	var err error
	if d.bannerPath != "" {
		err = d.sendPhoto(ctx, message)
	} else {
		err = d.sendMessage(ctx, message)
	}
	if err != nil {
		return err
	}

	d.logger.WithField("signature", t.Signature).Info("telegram notification sent")
	return nil
}

// FormatMessage renders the HTML alert text for a transfer.
func (d *Dispatcher) FormatMessage(t *domain.Transfer) string {
	side := "Buy"
	if t.Side(d.wallet) == domain.SideSell {
		side = "Sell"
	}

	date := time.Unix(t.Timestamp, 0).UTC().Format(time.RFC1123)

	var b strings.Builder
	fmt.Fprintf(&b, "<b>🚨 %s DETECTED 🚨</b>\n\n", side)
	fmt.Fprintf(&b, "<b>Token:</b> %s (%s)\n", d.tokenName, d.tokenSymbol)
	fmt.Fprintf(&b, "<b>Amount:</b> <code>%s %s</code>\n", formatAmount(t.Amount), d.tokenSymbol)
	fmt.Fprintf(&b, "<b>USD Value:</b> <code>$%.4f</code>\n", t.USDValue())
	fmt.Fprintf(&b, "<b>From:</b> <a href=\"https://solscan.io/account/%s\">%s</a>\n", t.FromAddress, t.FromAddress)
	fmt.Fprintf(&b, "<b>To:</b> <a href=\"https://solscan.io/account/%s\">%s</a>\n", t.ToAddress, t.ToAddress)
	fmt.Fprintf(&b, "<b>SOL Price:</b> 1 SOL / <code>$%g</code>\n", t.SolPrice)
	fmt.Fprintf(&b, "<b>%s Price:</b> 1 %s / <code>$%g</code>\n", d.tokenName, d.tokenSymbol, t.TokenPrice)
	fmt.Fprintf(&b, "<b>Wallet Balance:</b> <code>%s %s</code>\n", formatAmount(t.WalletBalanceAtTime), d.tokenSymbol)
	fmt.Fprintf(&b, "<b>Date:</b> <code>%s</code>\n\n", date)
	fmt.Fprintf(&b, "<a href=\"https://solscan.io/tx/%s\">🔍 View Transaction</a>", t.Signature)

	return b.String()
}

// sendMessage delivers a text-only alert.
func (d *Dispatcher) sendMessage(ctx context.Context, text string) error {
	resp, err := d.http.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"chat_id":    d.chatID,
			"text":       text,
			"parse_mode": "HTML",
		}).
		Post(fmt.Sprintf("/bot%s/sendMessage", d.botToken))
	if err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("telegram sendMessage: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// sendPhoto delivers the banner image with the alert as its caption.
func (d *Dispatcher) sendPhoto(ctx context.Context, caption string) error {
	resp, err := d.http.R().
		SetContext(ctx).
		SetFile("photo", d.bannerPath).
		SetFormData(map[string]string{
			"chat_id":    d.chatID,
			"caption":    caption,
			"parse_mode": "HTML",
		}).
		Post(fmt.Sprintf("/bot%s/sendPhoto", d.botToken))
	if err != nil {
		return fmt.Errorf("telegram sendPhoto: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("telegram sendPhoto: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// formatAmount renders a token quantity with thousands separators.
func formatAmount(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	parts := strings.SplitN(s, ".", 2)
	intPart := parts[0]

	neg := strings.HasPrefix(intPart, "-")
	if neg {
		intPart = intPart[1:]
	}

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	out := b.String()
	if neg {
		out = "-" + out
	}
	if len(parts) == 2 && parts[1] != "00" {
		out += "." + parts[1]
	}
	return out
}
