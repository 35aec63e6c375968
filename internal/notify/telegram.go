// Package notify forwards business events to an operator chat.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/digkill/lumina/internal/models"
)

// Sender is the part of tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts one message per event to the admin chat. Sends run in the
// background; Close waits for the ones in flight.
type Telegram struct {
	api    Sender
	chatID int64
	log    *slog.Logger
	wg     sync.WaitGroup
}

func NewTelegram(api Sender, chatID int64, log *slog.Logger) *Telegram {
	return &Telegram{api: api, chatID: chatID, log: log}
}

// Connect authenticates the bot token against the Bot API.
func Connect(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return api, nil
}

func (t *Telegram) UserSignedUp(_ context.Context, user models.User) {
	text := fmt.Sprintf("New sign-up: %s <%s>, %d credits", user.Name, user.Email, user.Credits)
	if user.IsAdmin {
		text += " (admin)"
	}
	t.send(text)
}

func (t *Telegram) CreditsPurchased(_ context.Context, user models.User, plan models.CreditPlan) {
	text := fmt.Sprintf("Purchase: %s bought %s (%s credits, $%.2f). Balance now %s.",
		user.Email, plan.Name, humanize.Comma(int64(plan.Credits)), plan.Price, humanize.Comma(int64(user.Credits)))
	t.send(text)
}

func (t *Telegram) send(text string) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if _, err := t.api.Send(tgbotapi.NewMessage(t.chatID, text)); err != nil {
			t.log.Error("send admin notification", "err", err)
		}
	}()
}

func (t *Telegram) Close() {
	t.wg.Wait()
}
