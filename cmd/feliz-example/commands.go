package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"sort"
	"syscall"

	"github.com/nao1215/feliz/internal/account"
	"github.com/nao1215/feliz/internal/server"
	"github.com/nao1215/feliz/pkg/app"
	"github.com/nao1215/feliz/pkg/initialware"
	"github.com/nao1215/feliz/pkg/inspector"
	"github.com/nao1215/feliz/pkg/logger"
	"github.com/nao1215/feliz/pkg/store"
	"github.com/spf13/cobra"
)

// rootOptions は全サブコマンド共通のフラグ。
type rootOptions struct {
	configDir string
	logLevel  string
	pretty    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "feliz-example",
		Short:         "feliz sample server",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(*cobra.Command, []string) {
			logger.Setup(opts.logLevel, opts.pretty)
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configDir, "config-dir", "c", app.DefaultConfigDir, "directory containing private/ and public/ config files")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&opts.pretty, "pretty", false, "human readable log output")

	cmd.AddCommand(newServeCmd(opts), newCheckConfigCmd(opts), newCreateUserCmd(opts))
	return cmd
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a := app.New(app.WithConfigDir(opts.configDir))
			if err := server.Setup(ctx, a, server.Options{}); err != nil {
				_ = a.Close()
				return err
			}
			return a.Run(ctx)
		},
	}
}

func newCheckConfigCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Load the config files and print the enabled features",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return checkConfig(cmd.Context(), cmd.OutOrStdout(), opts.configDir)
		},
	}
}

func newCreateUserCmd(opts *rootOptions) *cobra.Command {
	var (
		uid, password, name string
		admin               bool
	)
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Add a user directly to the database, e.g. the first admin",
		RunE: func(cmd *cobra.Command, _ []string) error {
			permission := account.DefaultPermission
			if admin {
				permission = account.PermissionAdmin
			}
			return createUser(cmd.Context(), cmd.OutOrStdout(), opts.configDir, server.Options{}, uid, password, permission, name)
		},
	}
	cmd.Flags().StringVar(&uid, "uid", "", "user id")
	cmd.Flags().StringVar(&password, "password", "", "password")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant the admin permission")
	_ = cmd.MarkFlagRequired("uid")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

// createUser は接続だけを初期化して利用者を追加する。
func createUser(ctx context.Context, w io.Writer, configDir string, sopts server.Options, uid, password, permission, name string) error {
	a := app.New(app.WithConfigDir(configDir))
	defer func() { _ = a.Close() }()

	if err := server.SetupStorage(ctx, a, sopts); err != nil {
		return err
	}
	if err := account.NewService().CreateUser(ctx, a.Store, uid, password, permission, name); err != nil {
		return err
	}
	fmt.Fprintf(w, "created %s (%s)\n", uid, permission)
	return nil
}

// checkConfig は設定ファイルを読み込み、有効な機能と接続設定の検証結果を出力する。
func checkConfig(ctx context.Context, w io.Writer, configDir string) error {
	a := app.New(app.WithConfigDir(configDir))
	if _, err := initialware.NewSystem().Use(initialware.ImportGlobals{}).Execute(ctx, a, nil); err != nil {
		return err
	}
	if !inspector.ConfigsLoaded(a.Store) {
		return fmt.Errorf("%s/%s を読み込めません", configDir, initialware.DefaultConfigFile)
	}

	features := []struct {
		name    string
		enabled bool
	}{
		{"API", inspector.APIEnabled(a.Store)},
		{"JWT", inspector.JWTEnabled(a.Store)},
		{"CORS", inspector.CORSEnabled(a.Store)},
		{"DB", inspector.DBEnabled(a.Store)},
	}
	for _, f := range features {
		fmt.Fprintf(w, "%-5s %t\n", f.name, f.enabled)
	}

	if inspector.APIEnabled(a.Store) {
		apis, _ := a.Store.Lookup(store.KeyAPI, nil).(map[string]any)
		names := make([]string, 0, len(apis))
		for name := range apis {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintf(w, "APIs  %v\n", names)
	}

	if inspector.DBEnabled(a.Store) {
		iniFile, _ := a.Store.Lookup(store.KeyConfigs+".DB.INI_FILE", "").(string)
		env := initialware.LoadConnectionConfigs(initialware.ResolvePath(configDir, iniFile))
		if !env.Indicator {
			return fmt.Errorf("接続設定が不正です: %s", env.Message)
		}
		configs, _ := env.Content.(initialware.ConnConfigs)
		for _, kind := range store.Kinds() {
			aliases := make([]string, 0, len(configs[kind]))
			for alias := range configs[kind] {
				aliases = append(aliases, alias)
			}
			sort.Strings(aliases)
			fmt.Fprintf(w, "%-8s %v\n", kind, aliases)
		}
	}
	return nil
}
