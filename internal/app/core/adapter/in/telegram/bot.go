package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-chat-ledger/internal/app/core/domain"
)

const helpText = "Welcome! Use /balance, /deposit, /send, or /history."

// Ledger 是對話 adapter 需要的核心操作
type Ledger interface {
	GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error)
	Deposit(ctx context.Context, accountID, amountText string) (decimal.Decimal, error)
	Transfer(ctx context.Context, senderID, recipientID, amountText string) (decimal.Decimal, error)
	RecentHistory(ctx context.Context, accountID string, limit int) ([]domain.Record, error)
}

// Sender 送出訊息，*tgbotapi.BotAPI 即符合
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot 將 Telegram 訊息轉成帳本操作
type Bot struct {
	api          Sender
	ledger       Ledger
	sessions     *Sessions
	historyLimit int
	logger       *slog.Logger
}

func NewBot(api Sender, ledger Ledger, sessions *Sessions, historyLimit int, logger *slog.Logger) *Bot {
	if historyLimit <= 0 {
		historyLimit = domain.DefaultHistoryLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		api:          api,
		ledger:       ledger,
		sessions:     sessions,
		historyLimit: historyLimit,
		logger:       logger,
	}
}

// Run 處理 updates 直到 ctx 結束或 channel 關閉
// 逾時的對話每分鐘清理一次
func (b *Bot) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	sweep := time.NewTicker(time.Minute)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sweep.C:
			if n := b.sessions.Sweep(); n > 0 {
				b.logger.Debug("expired dialogues removed", slog.Int("count", n))
			}
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}
			b.Handle(ctx, update.Message)
		}
	}
}

// accountID 以 username 為帳戶 ID，沒有 username 時使用數字 ID
func accountID(u *tgbotapi.User) string {
	if u.UserName != "" {
		return u.UserName
	}
	return strconv.FormatInt(u.ID, 10)
}

func displayName(u *tgbotapi.User) string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Handle 處理一則訊息
func (b *Bot) Handle(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	user := accountID(msg.From)

	var reply string
	if msg.IsCommand() {
		reply = b.handleCommand(ctx, user, msg)
	} else {
		reply = b.handleText(ctx, user, strings.TrimSpace(msg.Text))
	}
	if reply == "" {
		return
	}
	if _, err := b.api.Send(tgbotapi.NewMessage(msg.Chat.ID, reply)); err != nil {
		b.logger.Warn("send reply failed", slog.Int64("chat_id", msg.Chat.ID), slog.Any("error", err))
	}
}

func (b *Bot) handleCommand(ctx context.Context, user string, msg *tgbotapi.Message) string {
	switch msg.Command() {
	case "start", "help":
		return helpText
	case "balance":
		bal, err := b.ledger.GetBalance(ctx, user)
		if err != nil {
			return b.failure(err)
		}
		return fmt.Sprintf("%s, your balance is %s", displayName(msg.From), bal.StringFixed(2))
	case "deposit":
		return b.deposit(ctx, user, msg.CommandArguments())
	case "send", "transfer":
		b.sessions.Begin(user)
		return "Enter recipient username:"
	case "cancel":
		if b.sessions.End(user) {
			return "Transaction cancelled."
		}
		return "Nothing to cancel."
	case "history":
		return b.history(ctx, user)
	default:
		return "Unknown command. Use /help."
	}
}

func (b *Bot) deposit(ctx context.Context, user, args string) string {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return "Usage: /deposit <amount> (positive number)"
	}
	bal, err := b.ledger.Deposit(ctx, user, fields[0])
	if errors.Is(err, domain.ErrInvalidAmount) {
		return "Usage: /deposit <amount> (positive number)"
	}
	if err != nil {
		return b.failure(err)
	}
	amount, _ := domain.ParseAmount(fields[0])
	return fmt.Sprintf("Deposited %s. New balance: %s", amount.StringFixed(2), bal.StringFixed(2))
}

// handleText 依對話狀態處理一般文字
func (b *Bot) handleText(ctx context.Context, user, text string) string {
	sess, ok := b.sessions.Get(user)
	if !ok {
		return "Use /help to see available commands."
	}

	switch sess.Stage {
	case StageAwaitingRecipient:
		recipient := strings.TrimLeft(text, "@")
		if recipient == "" {
			return "Enter recipient username:"
		}
		b.sessions.SetRecipient(user, recipient)
		return "Enter amount to send:"
	case StageAwaitingAmount:
		// 不論成功與否，對話都在這一步結束
		b.sessions.End(user)
		amount, err := b.ledger.Transfer(ctx, user, sess.Recipient, text)
		switch {
		case errors.Is(err, domain.ErrInvalidAmount):
			return "Invalid amount."
		case errors.Is(err, domain.ErrInsufficientFunds):
			return "Insufficient balance."
		case err != nil:
			return b.failure(err)
		}
		return fmt.Sprintf("Sent %s to @%s", amount.StringFixed(2), sess.Recipient)
	}
	return ""
}

func (b *Bot) history(ctx context.Context, user string) string {
	records, err := b.ledger.RecentHistory(ctx, user, b.historyLimit)
	if err != nil {
		return b.failure(err)
	}
	if len(records) == 0 {
		return "No transactions found."
	}

	var sb strings.Builder
	for _, r := range records {
		fmt.Fprintf(&sb, "%s -> %s: %s on %s\n",
			party(r.Sender, user), party(r.Recipient, user), r.Amount.StringFixed(2), r.Timestamp)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// party 呼叫者本人顯示為 You，其他人顯示為 @id
func party(id, user string) string {
	if id == user {
		return "You"
	}
	return "@" + id
}

func (b *Bot) failure(err error) string {
	if errors.Is(err, domain.ErrInvalidAccountID) {
		return "Invalid recipient."
	}
	b.logger.Error("ledger request failed", slog.Any("error", err))
	return "Something went wrong, please try again later."
}
