// brokerctl is a small CLI client for the broker's HTTP API, handy for
// driving logins and checking cached tokens from scripts.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type client struct {
	BaseURL   string
	SessionID string
	OutFormat string // "json" | "text"
	HTTP      *http.Client
}

func (c *client) do(method, path string, query url.Values, body []byte) (int, []byte, http.Header, error) {
	u := strings.TrimRight(c.BaseURL, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequest(method, u, strings.NewReader(string(body)))
	if err != nil {
		return 0, nil, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, resp.Header, nil
}

func (c *client) print(status int, body []byte) {
	if c.OutFormat == "json" {
		var v any
		if json.Unmarshal(body, &v) == nil {
			p, _ := json.MarshalIndent(v, "", "  ")
			fmt.Println(string(p))
			return
		}
	}
	if len(body) > 0 {
		fmt.Println(string(body))
	} else {
		fmt.Printf("status=%d\n", status)
	}
}

func main() {
	c := &client{
		HTTP: &http.Client{
			Timeout: 60 * time.Second,
			// We want the provider redirect as data, not to follow it.
			CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}

	root := &cobra.Command{
		Use:   "brokerctl",
		Short: "CLI client for the tokenbroker HTTP API",
	}
	root.PersistentFlags().StringVar(&c.BaseURL, "base-url", envOr("BROKER_URL", "http://localhost:5000"), "broker base URL")
	root.PersistentFlags().StringVar(&c.SessionID, "session", envOr("BROKER_SESSION", uuid.NewString()), "caller session id")
	root.PersistentFlags().StringVar(&c.OutFormat, "out", "json", "output format: json|text")

	var clientID, clientSecret string
	login := &cobra.Command{
		Use:   "login <provider>",
		Short: "Start an interactive login; prints the URL to open in a browser",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			q := url.Values{}
			q.Set("client_id", clientID)
			q.Set("client_secret", clientSecret)
			q.Set("session_id", c.SessionID)
			status, body, headers, err := c.do(http.MethodGet, "/auth/"+args[0], q, nil)
			if err != nil {
				return err
			}
			if loc := headers.Get("Location"); status == http.StatusFound && loc != "" {
				fmt.Println(loc)
				fmt.Fprintf(os.Stderr, "session: %s\n", c.SessionID)
				return nil
			}
			c.print(status, body)
			return nil
		},
	}
	login.Flags().StringVar(&clientID, "client-id", os.Getenv("OAUTH_CLIENT_ID"), "oauth client id")
	login.Flags().StringVar(&clientSecret, "client-secret", os.Getenv("OAUTH_CLIENT_SECRET"), "oauth client secret")

	token := &cobra.Command{
		Use:   "token <provider>",
		Short: "Fetch a currently-valid access token (refreshing if needed)",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			path := "/token/" + args[0]
			q := url.Values{}
			if args[0] != "simplybook" {
				q.Set("session_id", c.SessionID)
			}
			status, body, _, err := c.do(http.MethodGet, path, q, nil)
			if err != nil {
				return err
			}
			c.print(status, body)
			return nil
		},
	}

	var company, user, password string
	sbLogin := &cobra.Command{
		Use:   "simplybook-login",
		Short: "Exchange SimplyBook credentials for a token",
		RunE: func(_ *cobra.Command, _ []string) error {
			payload, _ := json.Marshal(map[string]string{
				"company_login": company,
				"user_login":    user,
				"password":      password,
			})
			status, body, _, err := c.do(http.MethodPost, "/simplybook/login", nil, payload)
			if err != nil {
				return err
			}
			c.print(status, body)
			return nil
		},
	}
	sbLogin.Flags().StringVar(&company, "company", "", "company login")
	sbLogin.Flags().StringVar(&user, "user", "", "user login")
	sbLogin.Flags().StringVar(&password, "password", os.Getenv("SIMPLYBOOK_PASSWORD"), "password")
	_ = sbLogin.MarkFlagRequired("company")
	_ = sbLogin.MarkFlagRequired("user")

	root.AddCommand(login, token, sbLogin)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
