package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	authclient "github.com/MrEthical07/authclient"
	"github.com/spf13/cobra"
)

func newLoginCmd(a *app) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Exchange credentials for a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = os.Getenv("AUTHCTL_PASSWORD")
			}
			if username == "" || password == "" {
				return errors.New("username and password are required (-u, -p or AUTHCTL_PASSWORD)")
			}
			res, err := a.client.Login(cmd.Context(), username, password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s %s)\n", res.Username, res.FirstName, res.LastName)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	return cmd
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Fetch the current user's profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			profile, err := a.client.Me(cmd.Context())
			if err != nil {
				return explain(err)
			}
			return writeJSON(cmd.OutOrStdout(), profile)
		},
	}
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <path>",
		Short: "GET an authenticated path and print the body",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := a.client.Get(cmd.Context(), args[0])
			if err != nil {
				return explain(err)
			}
			out := cmd.OutOrStdout()
			if _, err := out.Write(resp.Body); err != nil {
				return err
			}
			if n := len(resp.Body); n > 0 && resp.Body[n-1] != '\n' {
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}

func newRefreshCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Rotate the token pair now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.client.RefreshNow(cmd.Context()); err != nil {
				return explain(err)
			}
			out := cmd.OutOrStdout()
			if exp, ok := a.client.AccessTokenExpiry(); ok {
				fmt.Fprintf(out, "Token refreshed, expires %s\n", exp.Local().Format(time.RFC3339))
				return nil
			}
			fmt.Fprintln(out, "Token refreshed")
			return nil
		},
	}
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session locally and on the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := a.client.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			if err != nil {
				return fmt.Errorf("backend logout failed (local session cleared): %w", err)
			}
			return nil
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored session without contacting the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if !a.client.IsAuthenticated() {
				fmt.Fprintln(out, "Not logged in")
				return nil
			}
			user := "unknown user"
			if p := a.client.User(); p != nil {
				user = p.Username
			}
			fmt.Fprintf(out, "Logged in as %s\n", user)
			if exp, ok := a.client.AccessTokenExpiry(); ok {
				if d := time.Until(exp); d > 0 {
					fmt.Fprintf(out, "Access token expires in %s\n", d.Round(time.Second))
				} else {
					fmt.Fprintln(out, "Access token expired; it will be refreshed on next use")
				}
			}
			return nil
		},
	}
}

func explain(err error) error {
	switch {
	case errors.Is(err, authclient.ErrNotAuthenticated):
		return errors.New("not logged in; run authctl login")
	case errors.Is(err, authclient.ErrUnauthorized):
		return fmt.Errorf("session rejected, log in again: %w", err)
	default:
		return err
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
