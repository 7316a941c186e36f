// ABOUTME: Account commands: login, register, logout, whoami and email verification
// ABOUTME: Prompt with huh forms for missing values when run in a terminal

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hiu1412/carshop/internal/client"
	"github.com/hiu1412/carshop/internal/tui/forms"
)

var (
	loginEmail    string
	loginPassword string
	loginGoogle   bool

	registerName     string
	registerEmail    string
	registerPassword string

	verifyResend bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in",
	Long: `Sign in with email and password. Missing values are prompted for in a terminal.

The access token and refresh cookie are kept in the config directory so later
commands stay signed in.`,
	Run: func(cmd *cobra.Command, args []string) {
		exitWith(func(ctx context.Context) int {
			if loginGoogle {
				return runGoogleURL(ctx, os.Stdout)
			}
			l := &forms.Login{Email: loginEmail, Password: loginPassword}
			if isInteractive() {
				if err := l.Run(); err != nil {
					return fail(os.Stdout, err)
				}
			}
			return runLogin(ctx, os.Stdout, l.Email, l.Password)
		})
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	Run: func(cmd *cobra.Command, args []string) {
		exitWith(func(ctx context.Context) int {
			r := &forms.Register{FullName: registerName, Email: registerEmail, Password: registerPassword}
			if isInteractive() {
				if err := r.Run(); err != nil {
					return fail(os.Stdout, err)
				}
			} else if r.PasswordConfirmation == "" {
				r.PasswordConfirmation = r.Password
			}
			return runRegister(ctx, os.Stdout, client.RegisterInput{
				FullName:             r.FullName,
				Email:                r.Email,
				Password:             r.Password,
				PasswordConfirmation: r.PasswordConfirmation,
			})
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored session",
	Run: func(cmd *cobra.Command, args []string) {
		exitWith(func(ctx context.Context) int { return runLogout(ctx, os.Stdout) })
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in account",
	Run: func(cmd *cobra.Command, args []string) {
		exitWith(func(ctx context.Context) int { return runWhoami(ctx, os.Stdout) })
	},
}

var verifyEmailCmd = &cobra.Command{
	Use:   "verify-email <email> [token]",
	Short: "Confirm an email address, or resend the verification mail",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		token := ""
		if len(args) == 2 {
			token = args[1]
		}
		exitWith(func(ctx context.Context) int {
			return runVerifyEmail(ctx, os.Stdout, args[0], token, verifyResend)
		})
	},
}

func init() {
	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, whoamiCmd, verifyEmailCmd)

	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Account password")
	loginCmd.Flags().BoolVar(&loginGoogle, "google", false, "Print the Google sign-in URL instead")

	registerCmd.Flags().StringVar(&registerName, "name", "", "Full name")
	registerCmd.Flags().StringVar(&registerEmail, "email", "", "Account email")
	registerCmd.Flags().StringVar(&registerPassword, "password", "", "Password (at least 6 characters)")

	verifyEmailCmd.Flags().BoolVar(&verifyResend, "resend", false, "Send a new verification mail")
}

// runLogin signs in and returns exit code
func runLogin(ctx context.Context, w io.Writer, email, password string) int {
	if email == "" || password == "" {
		return fail(w, errors.New("--email and --password are required"))
	}
	return withApp(ctx, w, func(a *app) int {
		u, err := a.client.Login(ctx, email, password)
		if err != nil {
			return fail(w, err)
		}
		if IsJSONOutput() {
			return writeJSON(w, u)
		}
		fmt.Fprintln(w, formatUserHuman("Signed in as", u))
		return exitOK
	})
}

// runRegister creates an account and returns exit code
func runRegister(ctx context.Context, w io.Writer, in client.RegisterInput) int {
	if in.FullName == "" || in.Email == "" || in.Password == "" {
		return fail(w, errors.New("--name, --email and --password are required"))
	}
	return withApp(ctx, w, func(a *app) int {
		u, err := a.client.Register(ctx, in)
		if err != nil {
			return fail(w, err)
		}
		if IsJSONOutput() {
			return writeJSON(w, u)
		}
		fmt.Fprintln(w, formatUserHuman("Registered", u))
		if !u.Verified() {
			fmt.Fprintln(w, "Check your inbox, then run 'carshop verify-email <email> <token>'.")
		}
		return exitOK
	})
}

// runLogout signs out and returns exit code
func runLogout(ctx context.Context, w io.Writer) int {
	return withApp(ctx, w, func(a *app) int {
		if !a.session.SignedIn() {
			fmt.Fprintln(w, "Not signed in.")
			return exitOK
		}
		if err := a.client.Logout(ctx); err != nil {
			return fail(w, err)
		}
		fmt.Fprintln(w, "Signed out.")
		return exitOK
	})
}

// runWhoami shows the account the server associates with the stored token
func runWhoami(ctx context.Context, w io.Writer) int {
	return withApp(ctx, w, func(a *app) int {
		if err := a.requireSignIn(); err != nil {
			return fail(w, err)
		}
		u, err := a.client.Me(ctx)
		if err != nil {
			return fail(w, err)
		}
		if IsJSONOutput() {
			return writeJSON(w, u)
		}
		fmt.Fprintln(w, formatUserHuman("Signed in as", u))
		return exitOK
	})
}

// runVerifyEmail confirms an address or resends the mail
func runVerifyEmail(ctx context.Context, w io.Writer, email, token string, resend bool) int {
	if !resend && token == "" {
		return fail(w, errors.New("a verification token is required (or use --resend)"))
	}
	return withApp(ctx, w, func(a *app) int {
		if resend {
			if err := a.client.ResendVerification(ctx, email); err != nil {
				return fail(w, err)
			}
			fmt.Fprintf(w, "Verification mail sent to %s.\n", email)
			return exitOK
		}
		if err := a.client.VerifyEmail(ctx, email, token); err != nil {
			return fail(w, err)
		}
		fmt.Fprintf(w, "Email %s verified.\n", email)
		return exitOK
	})
}

// runGoogleURL prints the Google sign-in URL
func runGoogleURL(ctx context.Context, w io.Writer) int {
	return withApp(ctx, w, func(a *app) int {
		u, err := a.client.GoogleAuthURL(ctx)
		if err != nil {
			return fail(w, err)
		}
		if IsJSONOutput() {
			return writeJSON(w, map[string]string{"url": u})
		}
		fmt.Fprintf(w, "Open this URL in a browser to sign in with Google:\n%s\n", u)
		return exitOK
	})
}

// formatUserHuman formats an account for human readability
func formatUserHuman(heading string, u *client.User) string {
	verified := "no"
	if u.Verified() {
		verified = "yes"
	}
	return fmt.Sprintf(`%s %s
Name:      %s
Role:      %s
Verified:  %s`, heading, u.Email, u.FullName, u.Role, verified)
}
