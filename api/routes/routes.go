package routes

import (
	"net/http"

	"github.com/ArowuTest/jraffle-backend/internal/handlers"
	"github.com/ArowuTest/jraffle-backend/internal/middleware"
	"github.com/ArowuTest/jraffle-backend/pkg/jwt"
	"github.com/gin-gonic/gin"
)

// HandlerDependencies holds the handlers and collaborators the router wires
type HandlerDependencies struct {
	AuthHandler     *handlers.AuthHandler
	RaffleHandler   *handlers.RaffleHandler
	PurchaseHandler *handlers.PurchaseHandler
	DrawHandler     *handlers.DrawHandler
	Tokens          *jwt.TokenService
	AllowedOrigins  []string
}

// SetupRouter sets up the router
func SetupRouter(deps HandlerDependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware(deps.AllowedOrigins))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware())
	// payment proofs are capped at 10MB; keep the rest of the form in memory too
	router.MaxMultipartMemory = 12 << 20

	public := router.Group("/api/v1")
	{
		public.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		public.POST("/auth/login", deps.AuthHandler.Login)

		raffles := public.Group("/raffles")
		{
			raffles.GET("", deps.RaffleHandler.ListRaffles)
			raffles.GET("/:id", deps.RaffleHandler.GetRaffle)
			raffles.POST("/:id/checkout", deps.PurchaseHandler.Checkout)
		}
	}

	admin := router.Group("/api/v1/admin")
	admin.Use(middleware.JWTAuthMiddleware(deps.Tokens))
	{
		admin.GET("/stats", deps.RaffleHandler.Stats)
		admin.POST("/reload", deps.RaffleHandler.Reload)
		admin.PUT("/password", deps.AuthHandler.ChangePassword)

		raffles := admin.Group("/raffles")
		{
			raffles.POST("", deps.RaffleHandler.CreateRaffle)
			raffles.PATCH("/:id", deps.RaffleHandler.UpdateRaffle)
			raffles.DELETE("/:id", deps.RaffleHandler.DeleteRaffle)
			raffles.PUT("/:id/premium-numbers", deps.RaffleHandler.SetPremiumNumbers)
			raffles.DELETE("/:id/users", deps.RaffleHandler.RemoveUserAt)
			raffles.DELETE("/:id/users/:userId", deps.RaffleHandler.RemoveUser)

			raffles.POST("/:id/draw", deps.DrawHandler.StartDraw)
			raffles.GET("/:id/draw", deps.DrawHandler.GetDraw)
			raffles.DELETE("/:id/draw", deps.DrawHandler.CloseDraw)
		}

		purchases := admin.Group("/purchases")
		{
			purchases.GET("", deps.PurchaseHandler.ListPurchases)
			purchases.POST("/:id/confirm", deps.PurchaseHandler.ConfirmPurchase)
			purchases.POST("/:id/reject", deps.PurchaseHandler.RejectPurchase)
			purchases.DELETE("/:id", deps.PurchaseHandler.DeletePurchase)
		}
	}

	return router
}
