package models

// DashboardStats summarizes sales for the admin dashboard
type DashboardStats struct {
	TotalRevenue     int64 `json:"totalRevenue"`
	ActiveRaffles    int   `json:"activeRaffles"`
	TotalRaffles     int   `json:"totalRaffles"`
	TotalSoldTickets int   `json:"totalSoldTickets"`
	PendingPurchases int   `json:"pendingPurchases"`
}

// RaffleSummary is a raffle with its derived ticket counts
type RaffleSummary struct {
	*Raffle
	OccupiedTickets  int `json:"occupiedTickets"`
	AvailableTickets int `json:"availableTickets"`
}
