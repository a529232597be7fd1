package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/ecomserver/internal/config"
	"github.com/example/ecomserver/internal/handlers"
	"github.com/example/ecomserver/internal/middleware"
	"github.com/example/ecomserver/internal/repository"
	"github.com/example/ecomserver/internal/services"
)

// Dependencies are the collaborators the HTTP layer is built from.
type Dependencies struct {
	Config   *config.Config
	Repos    repository.Repositories
	Mailer   services.Mailer
	Uploader services.Uploader
	Telegram *services.TelegramService
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, deps Dependencies) {
	cfg := deps.Config

	accounts := services.NewAccountService(deps.Repos.Users, deps.Mailer, services.AccountConfig{
		JWTSecret:               cfg.JWTSecret,
		TokenTTL:                cfg.TokenExpires,
		OTPTTL:                  cfg.OTPTTL,
		IssueTokenOnMailFailure: cfg.IssueTokenOnMailFailure,
		RequireResetOTP:         cfg.RequireResetOTP,
	})
	sales := services.NewSalesService(deps.Repos.Orders)

	orderHandler := handlers.NewOrderHandler(deps.Repos.Orders, sales, deps.Telegram)
	authHandler := handlers.NewAuthHandler(accounts)
	passwordHandler := handlers.NewPasswordHandler(accounts)
	userHandler := handlers.NewUserHandler(deps.Repos.Users, accounts)
	uploadHandler := handlers.NewUploadHandler(deps.Uploader, deps.Repos.Images, cfg.UploadMaxFiles)

	requireAuth := middleware.AuthMiddleware(cfg.JWTSecret)
	requireSelf := middleware.RequireSelf("id")

	api := app.Group("/api")

	// Static paths are registered before /:id so they are not captured by it.
	orders := api.Group("/orders")
	orders.Get("/sales", orderHandler.Sales)
	orders.Get("/get/count", orderHandler.CountOrders)
	orders.Post("/create", orderHandler.CreateOrder)
	orders.Get("/", orderHandler.ListOrders)
	orders.Get("/:id", orderHandler.GetOrder)
	orders.Put("/:id", orderHandler.UpdateOrder)
	orders.Delete("/:id", orderHandler.DeleteOrder)

	users := api.Group("/users")
	users.Post("/upload", uploadHandler.Upload)
	users.Delete("/deleteImage", uploadHandler.DeleteImage)

	users.Post("/signup", authHandler.Signup)
	users.Post("/verifyAccount/resendOtp", authHandler.ResendOTP)
	users.Put("/verifyAccount/emailVerify/:id", authHandler.EmailVerify)
	users.Post("/verifyemail", authHandler.VerifyEmail)
	users.Post("/signin", authHandler.SignIn)
	users.Post("/authWithGoogle", authHandler.AuthWithGoogle)

	users.Put("/changePassword/:id", requireAuth, requireSelf, passwordHandler.ChangePassword)
	users.Post("/forgotPassword", passwordHandler.ForgotPassword)
	users.Post("/forgotPassword/changePassword", passwordHandler.ResetPassword)

	users.Get("/get/count", userHandler.CountUsers)
	users.Get("/", userHandler.ListUsers)
	users.Get("/:id", userHandler.GetUser)
	users.Put("/:id", requireAuth, requireSelf, userHandler.UpdateUser)
	users.Delete("/:id", userHandler.DeleteUser)
}
