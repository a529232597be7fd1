package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/example/ecomserver/internal/models"
)

// TelegramService posts admin notifications to a Telegram chat.
type TelegramService struct {
	botToken    string
	adminChatID string
	baseURL     string
	client      *http.Client
}

// NewTelegramService creates a new TelegramService.
func NewTelegramService(botToken, adminChatID string) *TelegramService {
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
		baseURL:     "https://api.telegram.org",
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether both the bot token and admin chat are configured.
func (s *TelegramService) Enabled() bool {
	return s != nil && s.botToken != "" && s.adminChatID != ""
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendToAdmin sends an HTML message to the admin chat.
func (s *TelegramService) SendToAdmin(text string) error {
	if !s.Enabled() {
		return nil
	}

	body, err := json.Marshal(telegramMessage{
		ChatID:    s.adminChatID,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.botToken)
	resp, err := s.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}
	return nil
}

// FormatAmount renders an order amount with thousand separators.
func FormatAmount(amount models.Amount) string {
	n, ok := amount.Int()
	if !ok {
		return html.EscapeString(string(amount))
	}

	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	str := fmt.Sprintf("%d", n)

	var result strings.Builder
	length := len(str)
	for i, digit := range str {
		if i > 0 && (length-i)%3 == 0 {
			result.WriteString(",")
		}
		result.WriteRune(digit)
	}
	return sign + result.String()
}

// OrderMessage builds the admin notification for a new order.
func OrderMessage(order models.Order) string {
	date := "-"
	if order.Date != nil {
		date = order.Date.UTC().Format("2006-01-02")
	}

	message := fmt.Sprintf(`<b>🛒 NEW ORDER</b>
<b>Order:</b> %s
<b>Customer:</b> %s
<b>Phone:</b> %s
<b>Email:</b> %s
<b>Address:</b> %s %s
<b>Amount:</b> %s
<b>Payment:</b> %s
<b>Date:</b> %s
<b>Status:</b> %s`,
		order.ID,
		html.EscapeString(order.Name),
		html.EscapeString(order.PhoneNumber),
		html.EscapeString(order.Email),
		html.EscapeString(order.Address),
		html.EscapeString(order.Pincode),
		FormatAmount(order.Amount),
		html.EscapeString(order.PaymentID),
		date,
		html.EscapeString(order.Status),
	)
	return strings.TrimSpace(message)
}

// NotifyNewOrder sends the new-order message to the admin chat.
func (s *TelegramService) NotifyNewOrder(order models.Order) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.SendToAdmin(OrderMessage(order)); err != nil {
		log.Printf("[Telegram] order %s notification failed: %v", order.ID, err)
		return err
	}
	return nil
}
