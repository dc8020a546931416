package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/supervaani/internal/profile"
	"github.com/hrygo/supervaani/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "supervaani",
	Short: "Terminal client for the SuperVaani campus assistant.",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		// A missing .env is fine; flags and the environment still apply.
		_ = godotenv.Load()
		return nil
	},
	SilenceUsage: true,
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("log-level", "info")
	viper.SetDefault("base-url", "http://localhost:8088")
	viper.SetDefault("page-size", 10)

	flags := rootCmd.PersistentFlags()
	flags.String("mode", "dev", `mode of the client, can be "prod" or "dev"`)
	flags.String("log-level", "info", "minimum log level (debug, info, warn, error)")
	flags.String("base-url", "http://localhost:8088", "backend base url")
	flags.String("email", "", "email of the signed-in user")
	flags.Duration("timeout", 0, "timeout for each backend call (0 selects the default)")
	flags.Int("page-size", 10, "conversations fetched per page")
	flags.Float64("rate-limit", 0, "maximum backend requests per second (0 is unlimited)")
	flags.String("metrics-addr", "", "serve prometheus metrics on this address")

	for _, name := range []string{"mode", "log-level", "base-url", "email", "timeout", "page-size", "rate-limit", "metrics-addr"} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("supervaani")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	rootCmd.AddCommand(chatCmd, devserverCmd, versionCmd)
}

// loadProfile assembles the profile from flags, the environment and .env.
func loadProfile() (*profile.Profile, error) {
	p := &profile.Profile{
		Mode:        viper.GetString("mode"),
		LogLevel:    viper.GetString("log-level"),
		BaseURL:     viper.GetString("base-url"),
		Email:       viper.GetString("email"),
		Timeout:     viper.GetDuration("timeout"),
		PageSize:    viper.GetInt("page-size"),
		RateLimit:   viper.GetFloat64("rate-limit"),
		MetricsAddr: viper.GetString("metrics-addr"),
		DevAddr:     viper.GetString("dev-addr"),
		Version:     version.GetCurrentVersion(viper.GetString("mode")),
	}
	p.FromEnv()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
