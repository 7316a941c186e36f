// ABOUTME: Back-office commands for cars, brands, orders and users
// ABOUTME: Require an admin account; the server rejects other roles with 403

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/hiu1412/carshop/internal/client"
	"github.com/hiu1412/carshop/internal/tui/forms"
	"github.com/hiu1412/carshop/internal/tui/styles"
	"github.com/hiu1412/carshop/internal/tui/widgets"
)

var (
	carModel        string
	carYear         int
	carBrand        string
	carColor        string
	carPrice        string
	carImageURL     string
	carStock        int
	carFuel         string
	carAvailability string

	brandName        string
	brandDescription string
	brandLogoURL     string

	adminPage int

	userName    string
	userEmail   string
	userRole    string
	userPhone   string
	userAddress string

	adminYes bool
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage the catalogue, orders and users (admin accounts only)",
}

var adminCarsCmd = &cobra.Command{Use: "cars", Short: "Manage cars"}
var adminBrandsCmd = &cobra.Command{Use: "brands", Short: "Manage brands"}
var adminOrdersCmd = &cobra.Command{Use: "orders", Short: "Manage all orders"}
var adminUsersCmd = &cobra.Command{Use: "users", Short: "Manage user accounts"}

var adminCarCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Add a car to the catalogue",
	Run: func(cmd *cobra.Command, args []string) {
		exitWith(func(ctx context.Context) int {
			in, err := carInputFromFlags(cmd.Flags())
			if err != nil {
				return fail(os.Stdout, err)
			}
			return runAdminCarSave(ctx, os.Stdout, "", in)
		})
	},
}

var adminCarUpdateCmd = &cobra.Command{
	Use:   "update <car-id>",
	Short: "Change the fields given as flags",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		exitWith(func(ctx context.Context) int {
			in, err := carInputFromFlags(cmd.Flags())
			if err != nil {
				return fail(os.Stdout, err)
			}
			return runAdminCarSave(ctx, os.Stdout, args[0], in)
		})
	},
}

var adminCarDeleteCmd = &cobra.Command{
	Use:   "delete <car-id>",
	Short: "Remove a car from the catalogue",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		exitWith(func(ctx context.Context) int {
			if !confirmDelete("car", args[0]) {
				return exitOK
			}
			return runAdminDelete(ctx, os.Stdout, "Car", args[0], func(a *app) error {
				return a.client.DeleteCar(ctx, args[0])
			})
		})
	},
}

var adminBrandCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Add a brand",
	Run: func(cmd *cobra.Command, args []string) {
		exitWith(func(ctx context.Context) int {
			return runAdminBrandSave(ctx, os.Stdout, "", brandInputFromFlags(cmd.Flags()))
		})
	},
}

var adminBrandUpdateCmd = &cobra.Command{
	Use:   "update <brand-id>",
	Short: "Change the fields given as flags",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		exitWith(func(ctx context.Context) int {
			return runAdminBrandSave(ctx, os.Stdout, args[0], brandInputFromFlags(cmd.Flags()))
		})
	},
}

var adminBrandDeleteCmd = &cobra.Command{
	Use:   "delete <brand-id>",
	Short: "Remove a brand",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		exitWith(func(ctx context.Context) int {
			if !confirmDelete("brand", args[0]) {
				return exitOK
			}
			return runAdminDelete(ctx, os.Stdout, "Brand", args[0], func(a *app) error {
				return a.client.DeleteBrand(ctx, args[0])
			})
		})
	},
}

var adminOrdersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every order",
	Run: func(cmd *cobra.Command, args []string) {
		exitWith(func(ctx context.Context) int { return runAdminOrdersList(ctx, os.Stdout, adminPage) })
	},
}

var adminOrderStatusCmd = &cobra.Command{
	Use:   "status <order-id> <pending|completed|cancelled>",
	Short: "Move an order to another status",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		exitWith(func(ctx context.Context) int {
			return runAdminOrderStatus(ctx, os.Stdout, args[0], args[1])
		})
	},
}

var adminUsersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List user accounts",
	Run: func(cmd *cobra.Command, args []string) {
		exitWith(func(ctx context.Context) int { return runAdminUsersList(ctx, os.Stdout, adminPage) })
	},
}

var adminUserShowCmd = &cobra.Command{
	Use:   "show <user-id>",
	Short: "Show one account",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		exitWith(func(ctx context.Context) int { return runAdminUserShow(ctx, os.Stdout, args[0]) })
	},
}

var adminUserUpdateCmd = &cobra.Command{
	Use:   "update <user-id>",
	Short: "Change the fields given as flags",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		exitWith(func(ctx context.Context) int {
			return runAdminUserUpdate(ctx, os.Stdout, args[0], userUpdateFromFlags(cmd.Flags()))
		})
	},
}

var adminUserDeleteCmd = &cobra.Command{
	Use:   "delete <user-id>",
	Short: "Delete an account",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		exitWith(func(ctx context.Context) int {
			if !confirmDelete("user", args[0]) {
				return exitOK
			}
			return runAdminDelete(ctx, os.Stdout, "User", args[0], func(a *app) error {
				return a.client.DeleteUser(ctx, args[0])
			})
		})
	},
}

func init() {
	rootCmd.AddCommand(adminCmd)
	adminCmd.AddCommand(adminCarsCmd, adminBrandsCmd, adminOrdersCmd, adminUsersCmd)
	adminCarsCmd.AddCommand(adminCarCreateCmd, adminCarUpdateCmd, adminCarDeleteCmd)
	adminBrandsCmd.AddCommand(adminBrandCreateCmd, adminBrandUpdateCmd, adminBrandDeleteCmd)
	adminOrdersCmd.AddCommand(adminOrdersListCmd, adminOrderStatusCmd)
	adminUsersCmd.AddCommand(adminUsersListCmd, adminUserShowCmd, adminUserUpdateCmd, adminUserDeleteCmd)

	for _, c := range []*cobra.Command{adminCarCreateCmd, adminCarUpdateCmd} {
		f := c.Flags()
		f.StringVar(&carModel, "model", "", "Model name")
		f.IntVar(&carYear, "year", 0, "Model year")
		f.StringVar(&carBrand, "brand", "", "Brand ID")
		f.StringVar(&carColor, "color", "", "Color")
		f.StringVar(&carPrice, "price", "", "Price, e.g. 30000.00")
		f.StringVar(&carImageURL, "image-url", "", "Image URL")
		f.IntVar(&carStock, "stock", 0, "Units in stock")
		f.StringVar(&carFuel, "fuel", "", "Fuel type")
		f.StringVar(&carAvailability, "availability", "", "available or unavailable")
	}
	for _, c := range []*cobra.Command{adminBrandCreateCmd, adminBrandUpdateCmd} {
		f := c.Flags()
		f.StringVar(&brandName, "name", "", "Brand name")
		f.StringVar(&brandDescription, "description", "", "Description")
		f.StringVar(&brandLogoURL, "logo-url", "", "Logo URL")
	}
	adminOrdersListCmd.Flags().IntVar(&adminPage, "page", 1, "Page number")
	adminUsersListCmd.Flags().IntVar(&adminPage, "page", 1, "Page number")

	f := adminUserUpdateCmd.Flags()
	f.StringVar(&userName, "name", "", "Full name")
	f.StringVar(&userEmail, "email", "", "Email")
	f.StringVar(&userRole, "role", "", "customer or admin")
	f.StringVar(&userPhone, "phone", "", "Phone number")
	f.StringVar(&userAddress, "address", "", "Address")

	adminCmd.PersistentFlags().BoolVarP(&adminYes, "yes", "y", false, "Do not ask before deleting")
}

// carInputFromFlags sets only the fields whose flags were given
func carInputFromFlags(f *pflag.FlagSet) (client.CarInput, error) {
	var in client.CarInput
	if f.Changed("model") {
		in.Model = &carModel
	}
	if f.Changed("year") {
		in.Year = &carYear
	}
	if f.Changed("brand") {
		in.BrandID = &carBrand
	}
	if f.Changed("color") {
		in.Color = &carColor
	}
	if f.Changed("price") {
		p, err := decimal.NewFromString(carPrice)
		if err != nil {
			return in, fmt.Errorf("invalid price %q: %w", carPrice, err)
		}
		in.Price = &p
	}
	if f.Changed("image-url") {
		in.ImageURL = &carImageURL
	}
	if f.Changed("stock") {
		in.Stock = &carStock
	}
	if f.Changed("fuel") {
		in.FuelType = &carFuel
	}
	if f.Changed("availability") {
		in.Availability = &carAvailability
	}
	return in, nil
}

func brandInputFromFlags(f *pflag.FlagSet) client.BrandInput {
	var in client.BrandInput
	if f.Changed("name") {
		in.Name = &brandName
	}
	if f.Changed("description") {
		in.Description = &brandDescription
	}
	if f.Changed("logo-url") {
		in.LogoURL = &brandLogoURL
	}
	return in
}

func userUpdateFromFlags(f *pflag.FlagSet) client.UserUpdate {
	var in client.UserUpdate
	if f.Changed("name") {
		in.FullName = &userName
	}
	if f.Changed("email") {
		in.Email = &userEmail
	}
	if f.Changed("role") {
		in.Role = &userRole
	}
	if f.Changed("phone") {
		in.Phone = &userPhone
	}
	if f.Changed("address") {
		in.Address = &userAddress
	}
	return in
}

// confirmDelete asks in a terminal unless --yes was given
func confirmDelete(kind, id string) bool {
	if adminYes || !isInteractive() {
		return true
	}
	ok, err := forms.Confirm(fmt.Sprintf("Delete %s %s?", kind, id))
	return err == nil && ok
}

// withAdmin runs fn with an app whose session belongs to an admin
func withAdmin(ctx context.Context, w io.Writer, fn func(a *app) int) int {
	return withApp(ctx, w, func(a *app) int {
		if err := a.requireAdmin(); err != nil {
			return fail(w, err)
		}
		return fn(a)
	})
}

// runAdminCarSave creates a car when id is empty, otherwise updates it
func runAdminCarSave(ctx context.Context, w io.Writer, id string, in client.CarInput) int {
	return withAdmin(ctx, w, func(a *app) int {
		var car *client.Car
		var err error
		if id == "" {
			car, err = a.client.CreateCar(ctx, in)
		} else {
			car, err = a.client.UpdateCar(ctx, id, in)
		}
		if err != nil {
			return fail(w, err)
		}
		if IsJSONOutput() {
			return writeJSON(w, car)
		}
		verb := "Updated"
		if id == "" {
			verb = "Created"
		}
		fmt.Fprintf(w, "%s car %s.\n\n%s\n", verb, car.ID, formatCarDetailHuman(car))
		return exitOK
	})
}

// runAdminBrandSave creates a brand when id is empty, otherwise updates it
func runAdminBrandSave(ctx context.Context, w io.Writer, id string, in client.BrandInput) int {
	return withAdmin(ctx, w, func(a *app) int {
		var brand *client.Brand
		var err error
		if id == "" {
			brand, err = a.client.CreateBrand(ctx, in)
		} else {
			brand, err = a.client.UpdateBrand(ctx, id, in)
		}
		if err != nil {
			return fail(w, err)
		}
		if IsJSONOutput() {
			return writeJSON(w, brand)
		}
		verb := "Updated"
		if id == "" {
			verb = "Created"
		}
		fmt.Fprintf(w, "%s brand %s (%s).\n", verb, brand.ID, brand.Name)
		return exitOK
	})
}

// runAdminDelete runs one of the delete calls and reports it
func runAdminDelete(ctx context.Context, w io.Writer, kind, id string, del func(a *app) error) int {
	return withAdmin(ctx, w, func(a *app) int {
		if err := del(a); err != nil {
			return fail(w, err)
		}
		if IsJSONOutput() {
			return writeJSON(w, map[string]string{"deleted": id})
		}
		fmt.Fprintf(w, "%s %s deleted.\n", kind, id)
		return exitOK
	})
}

func runAdminOrdersList(ctx context.Context, w io.Writer, page int) int {
	return withAdmin(ctx, w, func(a *app) int {
		p, err := a.client.ListOrders(ctx, page)
		if err != nil {
			return fail(w, err)
		}
		if IsJSONOutput() {
			return writeJSON(w, p)
		}
		fmt.Fprintln(w, formatOrdersHuman(p.Orders))
		fmt.Fprintf(w, "\n%d orders in total\n", p.Total)
		return exitOK
	})
}

func runAdminOrderStatus(ctx context.Context, w io.Writer, id, status string) int {
	return withAdmin(ctx, w, func(a *app) int {
		order, err := a.client.UpdateOrderStatus(ctx, id, status)
		if err != nil {
			return fail(w, err)
		}
		if IsJSONOutput() {
			return writeJSON(w, order)
		}
		fmt.Fprintf(w, "Order %s is now %s\n", order.ID, widgets.OrderBadge(order.Status))
		return exitOK
	})
}

func runAdminUsersList(ctx context.Context, w io.Writer, page int) int {
	return withAdmin(ctx, w, func(a *app) int {
		p, err := a.client.ListUsers(ctx, page)
		if err != nil {
			return fail(w, err)
		}
		if IsJSONOutput() {
			return writeJSON(w, p)
		}
		fmt.Fprintln(w, formatUsersHuman(p.Users))
		fmt.Fprintf(w, "\n%d users in total\n", p.Total)
		return exitOK
	})
}

func runAdminUserShow(ctx context.Context, w io.Writer, id string) int {
	return withAdmin(ctx, w, func(a *app) int {
		u, err := a.client.GetUser(ctx, id)
		if err != nil {
			return fail(w, err)
		}
		if IsJSONOutput() {
			return writeJSON(w, u)
		}
		fmt.Fprintln(w, formatUserHuman("User "+u.ID, u))
		return exitOK
	})
}

func runAdminUserUpdate(ctx context.Context, w io.Writer, id string, in client.UserUpdate) int {
	return withAdmin(ctx, w, func(a *app) int {
		u, err := a.client.UpdateUser(ctx, id, in)
		if err != nil {
			return fail(w, err)
		}
		if IsJSONOutput() {
			return writeJSON(w, u)
		}
		fmt.Fprintln(w, formatUserHuman("Updated user "+u.ID, u))
		return exitOK
	})
}

// formatUsersHuman formats accounts as a table
func formatUsersHuman(users []client.User) string {
	if len(users) == 0 {
		return "No users."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%-10s %-24s %-30s %s\n", "ID", "NAME", "EMAIL", "ROLE")
	for _, u := range users {
		role := u.Role
		if role == "admin" {
			role = styles.Title.Render(role)
		}
		fmt.Fprintf(&sb, "%-10s %-24s %-30s %s\n", u.ID, truncate(u.FullName, 24), truncate(u.Email, 30), role)
	}
	return strings.TrimRight(sb.String(), "\n")
}
