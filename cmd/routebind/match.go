package main

import (
	"fmt"
	"io"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/vyrodovalexey/routebind/internal/config"
	"github.com/vyrodovalexey/routebind/internal/router"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// matchOutput is the JSON form of a match outcome.
type matchOutput struct {
	Outcome   string        `json:"outcome"`
	URL       string        `json:"url"`
	Status    int           `json:"status,omitempty"`
	RoutePath string        `json:"routePath,omitempty"`
	Routes    []string      `json:"routes,omitempty"`
	Params    router.Params `json:"params,omitempty"`
}

func matchCmd() *cobra.Command {
	var (
		configPath string
		output     string
	)

	cmd := &cobra.Command{
		Use:   "match <url>",
		Short: "Match a URL against the configured routes",
		Long: `Match a URL against the route tree of a configuration file and print
the outcome: the redirect target, the matched route path with its
parameters, or an error when no route matches.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "text" && output != "json" {
				return fmt.Errorf("unsupported output format %q", output)
			}

			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			result, err := router.MatchRoutesAgainstLocation(cmd.Context(), cfg.Spec.RouteTree(), router.WithURL(args[0]))
			if err != nil {
				return err
			}

			out := describeMatch(args[0], result)
			if output == "json" {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			writeText(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", getEnvOrDefault(configPathEnv, defaultConfigPath),
		"Path to configuration file")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format (text, json)")

	return cmd
}

// loadConfig resolves, loads and validates the configuration file.
func loadConfig(path string) (*config.Config, error) {
	resolved, err := config.ResolveConfigPath(path)
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(resolved)
	if err != nil {
		return nil, err
	}

	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func describeMatch(rawURL string, result router.MatchResult) matchOutput {
	switch r := result.(type) {
	case *router.Redirect:
		return matchOutput{
			Outcome: "redirect",
			URL:     r.URL(),
			Status:  r.Status,
		}
	case *router.Matched:
		out := matchOutput{
			Outcome:   "matched",
			URL:       rawURL,
			RoutePath: router.GetRoutePath(r.State),
			Params:    r.State.Params,
		}
		for _, route := range r.State.MatchedRoutes {
			name := route.Name
			if name == "" {
				name = route.Path
			}
			out.Routes = append(out.Routes, name)
		}
		return out
	}
	return matchOutput{URL: rawURL}
}

func writeText(w io.Writer, out matchOutput) {
	switch out.Outcome {
	case "redirect":
		fmt.Fprintf(w, "redirect %d %s\n", out.Status, out.URL)
	case "matched":
		fmt.Fprintf(w, "matched %s\n", out.RoutePath)
		if len(out.Routes) > 0 {
			fmt.Fprintf(w, "  routes: %s\n", strings.Join(out.Routes, " > "))
		}
		for _, p := range out.Params {
			fmt.Fprintf(w, "  %s=%s\n", p.Key, strings.Join(p.Values, ","))
		}
	}
}

func writeJSON(w io.Writer, out matchOutput) error {
	body, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(body))
	return err
}
