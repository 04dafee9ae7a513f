package server

import "github.com/gofiber/fiber/v2"

// RegisterGameRoutes registers routes for all game types. The :game
// parameter is checked against the factory by gameEngine.
func (s *FiberServer) RegisterGameRoutes(api fiber.Router) {
	games := api.Group("/:game")
	games.Post("/initialize", s.initializeHandler)
	games.Post("/roll", s.rollHandler)
	games.Post("/verify", s.verifyHandler)
	games.Get("/state", s.getGameStateHandler)
	games.Get("/vault", s.getVaultHandler)
	games.Post("/vault/fund", s.fundVaultHandler)
}

func (s *FiberServer) RegisterCounterRoutes(api fiber.Router) {
	counters := api.Group("/counters")
	counters.Post("/", s.createCounterHandler)
	counters.Get("/:address", s.getCounterHandler)
	counters.Post("/:address/increment", s.incrementCounterHandler)
	counters.Post("/:address/decrement", s.decrementCounterHandler)
	counters.Post("/:address/set", s.setCounterHandler)
	counters.Delete("/:address", s.closeCounterHandler)
}
