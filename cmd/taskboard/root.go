package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"taskboard/internal/auth"
	"taskboard/internal/board"
	"taskboard/internal/client"
	"taskboard/internal/config"
	"taskboard/internal/logger"
)

// app — то, что нужно подкомандам после загрузки конфигурации.
type app struct {
	cfg    *config.Config
	log    *logrus.Entry
	client *client.Client
}

func newRootCmd() *cobra.Command {
	var cfgPath string
	a := &app{}

	root := &cobra.Command{
		Use:           "taskboard",
		Short:         "Клиент доски задач",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			// Лог CLI уходит в stderr, чтобы не мешать выводу доски.
			a.log = logger.New("taskboard", cfg.LogLevel, os.Stderr)
			a.client = client.New(cfg.Client.ServerURL, cfg.Client.Token, cfg.Client.RequestTimeout)
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", os.Getenv("TASKBOARD_CONFIG"), "path to YAML config")

	root.AddCommand(newRegisterCmd(a), newLoginCmd(a), newShellCmd(a))
	return root
}

func newRegisterCmd(a *app) *cobra.Command {
	var req auth.RegisterRequest

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Создать учётную запись",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.client.Register(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s (%s)\n", user.Email, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "email")
	cmd.Flags().StringVar(&req.Password, "password", "", "password, at least 6 chars")
	cmd.Flags().StringVar(&req.Name, "name", "", "display name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLoginCmd(a *app) *cobra.Command {
	var req auth.LoginRequest

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Войти и напечатать токен сессии",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.client.Login(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "export TASKBOARD_CLIENT_TOKEN=%s\n", s.Token)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "email")
	cmd.Flags().StringVar(&req.Password, "password", "", "password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newShellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Интерактивная доска",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Client.Token == "" {
				return errors.New("not logged in: run `taskboard login` and export TASKBOARD_CLIENT_TOKEN")
			}

			policy := board.UndoSingleSlot
			if a.cfg.Client.UndoPolicy == "queue" {
				policy = board.UndoQueue
			}
			ctrl := board.New(a.client, board.Options{
				UndoDelay:      a.cfg.Client.UndoDelay,
				UndoPolicy:     policy,
				RequestTimeout: a.cfg.Client.RequestTimeout,
				Logger:         a.log,
			})

			return newShell(ctrl, cmd.InOrStdin(), cmd.OutOrStdout()).Run(cmd.Context())
		},
	}
}
