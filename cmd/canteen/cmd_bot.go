package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Skotchmaster/school_canteen/internal/bot"
	"github.com/Skotchmaster/school_canteen/internal/config"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := boot(ctx)
		if err != nil {
			return err
		}
		defer a.close()
		config.MustNonEmpty(a.cfg.TelegramToken, "TELEGRAM_TOKEN")

		api, err := bot.NewClient(a.cfg.TelegramToken)
		if err != nil {
			return err
		}
		b := bot.New(api, bot.Services{
			Auth:    a.auth,
			Profile: a.profile,
			Menu:    a.menu,
			Cart:    a.cart,
			Balance: a.balance,
			Orders:  a.orders,
		}, a.log)
		return b.Run(ctx)
	},
}
