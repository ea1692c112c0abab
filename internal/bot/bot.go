// Package bot serves the canteen over a Telegram chat.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Skotchmaster/school_canteen/internal/logging"
	"github.com/Skotchmaster/school_canteen/internal/money"
	"github.com/Skotchmaster/school_canteen/internal/service"
)

const updateTimeout = 30

type Services struct {
	Auth    *service.AuthService
	Profile *service.ProfileService
	Menu    *service.MenuService
	Cart    *service.CartService
	Balance *service.BalanceService
	Orders  *service.OrderService
}

// Client is the part of the Telegram API the bot uses.
type Client interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Bot struct {
	svc Services
	api Client
	log *slog.Logger
}

func NewClient(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return api, nil
}

func New(api Client, svc Services, log *slog.Logger) *Bot {
	return &Bot{svc: svc, api: api, log: log.With("component", "bot")}
}

// Run long-polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = updateTimeout
	updates := b.api.GetUpdatesChan(cfg)
	defer b.api.StopReceivingUpdates()

	b.log.Info("bot_started")
	for {
		select {
		case <-ctx.Done():
			b.log.Info("bot_stopped")
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			if upd.Message == nil || upd.Message.Text == "" {
				continue
			}
			b.serve(ctx, upd.Message.Chat.ID, upd.Message.Text)
		}
	}
}

func (b *Bot) serve(ctx context.Context, chatID int64, text string) {
	l := b.log.With("chat_id", chatID)
	reply := b.handle(logging.IntoContext(ctx, l), chatID, text)
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, reply)); err != nil {
		l.Warn("send_failed", "error", err)
	}
}

// handle runs one chat command and returns the reply text.
func (b *Bot) handle(ctx context.Context, chatID int64, text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return helpText
	}
	cmd, _, _ := strings.Cut(strings.TrimPrefix(fields[0], "/"), "@")
	args := fields[1:]

	switch strings.ToLower(cmd) {
	case "start", "help":
		return helpText
	case "login":
		return b.login(ctx, chatID, args)
	}

	user, err := b.svc.Profile.UserByChat(ctx, chatID)
	if err != nil {
		return failure(ctx, "chat_user_error", err)
	}
	uid := user.ID

	switch strings.ToLower(cmd) {
	case "menu":
		return b.menu(ctx)
	case "add":
		return b.add(ctx, uid, args)
	case "cart":
		return b.cart(ctx, uid)
	case "clear":
		if err := b.svc.Cart.Clear(ctx, uid); err != nil {
			return failure(ctx, "clear_cart_error", err)
		}
		return "Cart cleared."
	case "checkout":
		return b.checkout(ctx, uid, args)
	case "balance":
		bal, err := b.svc.Balance.Balance(ctx, uid)
		if err != nil {
			return failure(ctx, "balance_error", err)
		}
		return "Balance: " + bal.String()
	case "topup":
		return b.topUp(ctx, uid, args)
	case "orders":
		return b.orders(ctx, uid)
	}
	return "Unknown command.\n\n" + helpText
}

const helpText = `School canteen bot.
/login <username> <password> - link this chat
/menu - today's menu
/add <meal_id> [qty] - add to cart
/cart - show cart
/clear - empty cart
/checkout [PROMO] - place the order
/balance - show balance
/topup <amount> <card|crypto|cash> - top up
/orders - recent orders`

func (b *Bot) login(ctx context.Context, chatID int64, args []string) string {
	if len(args) != 2 {
		return "Usage: /login <username> <password>"
	}
	user, err := b.svc.Auth.Authenticate(ctx, args[0], args[1])
	if errors.Is(err, service.ErrUnauthorized) {
		logging.FromContext(ctx).Warn("login_error", "reason", "invalid_credentials")
		return "Wrong username or password."
	}
	if err != nil {
		return failure(ctx, "login_error", err)
	}
	if err := b.svc.Profile.LinkTelegram(ctx, user.ID, chatID); err != nil {
		return failure(ctx, "link_chat_error", err)
	}
	logging.FromContext(ctx).Info("chat_linked", "user_id", user.ID)
	return fmt.Sprintf("Hello, %s! This chat is now linked.", user.Username)
}

func (b *Bot) menu(ctx context.Context) string {
	sections, err := b.svc.Menu.Menu(ctx)
	if err != nil {
		return failure(ctx, "menu_error", err)
	}
	if len(sections) == 0 {
		return "The menu is empty."
	}
	var sb strings.Builder
	for i, s := range sections {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(s.Category.Name + ":\n")
		for _, m := range s.Meals {
			fmt.Fprintf(&sb, "  #%d %s - %s\n", m.ID, m.Name, m.Price)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *Bot) add(ctx context.Context, uid uint, args []string) string {
	if len(args) < 1 || len(args) > 2 {
		return "Usage: /add <meal_id> [qty]"
	}
	mealID, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return "Usage: /add <meal_id> [qty]"
	}
	qty := 1
	if len(args) == 2 {
		if qty, err = strconv.Atoi(args[1]); err != nil {
			return "Usage: /add <meal_id> [qty]"
		}
	}
	item, err := b.svc.Cart.Add(ctx, uid, uint(mealID), qty)
	if err != nil {
		return failure(ctx, "add_to_cart_error", err)
	}
	return fmt.Sprintf("Added. Meal #%d x%d in cart.", item.MealID, item.Quantity)
}

func (b *Bot) cart(ctx context.Context, uid uint) string {
	view, err := b.svc.Cart.Get(ctx, uid)
	if err != nil {
		return failure(ctx, "get_cart_error", err)
	}
	if len(view.Lines) == 0 {
		return "Your cart is empty."
	}
	var sb strings.Builder
	for _, ln := range view.Lines {
		fmt.Fprintf(&sb, "#%d %s x%d = %s", ln.MealID, ln.Name, ln.Quantity, ln.TotalPrice)
		if !ln.Available {
			sb.WriteString(" (unavailable)")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Total: " + view.Total.String())
	return sb.String()
}

func (b *Bot) checkout(ctx context.Context, uid uint, args []string) string {
	code := ""
	if len(args) > 0 {
		code = args[0]
	}
	order, err := b.svc.Cart.Checkout(ctx, uid, code)
	if err != nil {
		return failure(ctx, "checkout_error", err)
	}
	msg := fmt.Sprintf("Order #%d placed. Total %s", order.ID, order.TotalAmount)
	if order.DiscountAmount > 0 {
		msg += fmt.Sprintf(", discount %s", order.DiscountAmount)
	}
	return msg + fmt.Sprintf(", paid %s.", order.FinalAmount)
}

func (b *Bot) topUp(ctx context.Context, uid uint, args []string) string {
	if len(args) != 2 {
		return "Usage: /topup <amount> <card|crypto|cash>"
	}
	gross, err := money.Parse(args[0])
	if err != nil {
		return "Usage: /topup <amount> <card|crypto|cash>"
	}
	credit, fee, err := service.ApplyTopUpFee(gross, strings.ToLower(args[1]))
	if err != nil {
		return failure(ctx, "topup_error", err)
	}
	bal, err := b.svc.Balance.TopUp(ctx, uid, credit, fee, strings.ToLower(args[1]))
	if err != nil {
		return failure(ctx, "topup_error", err)
	}
	return fmt.Sprintf("Credited %s (fee %s). Balance: %s", credit, fee, bal)
}

func (b *Bot) orders(ctx context.Context, uid uint) string {
	orders, err := b.svc.Orders.History(ctx, uid)
	if err != nil {
		return failure(ctx, "orders_error", err)
	}
	if len(orders) == 0 {
		return "No orders yet."
	}
	var sb strings.Builder
	for _, o := range orders {
		fmt.Fprintf(&sb, "#%d %s %s %s\n", o.ID, o.CreatedAt.Format("02.01 15:04"), o.Status, o.FinalAmount)
	}
	return strings.TrimRight(sb.String(), "\n")
}

var replies = map[string]string{
	"empty_cart":                "Your cart is empty.",
	"insufficient_balance":      "Not enough money on your balance.",
	"insufficient_user_balance": "Not enough money on your balance.",
	"invalid_promo":             "This promo code is not valid.",
	"not_found":                 "Not found.",
	"unauthorized":              "Please /login first.",
	"conflict":                  "Conflict, please try again.",
}

// failure logs err and turns it into a chat reply.
func failure(ctx context.Context, event string, err error) string {
	code := service.Code(err)
	l := logging.FromContext(ctx)
	if code == "store_error" {
		l.Error(event, "reason", code, "error", err)
		return "Something went wrong, please try later."
	}
	l.Warn(event, "reason", code, "error", err)

	if code == "validation_error" {
		return "Invalid input: " + strings.TrimPrefix(err.Error(), service.ErrValidation.Error()+": ")
	}
	if msg, ok := replies[code]; ok {
		return msg
	}
	return err.Error()
}
