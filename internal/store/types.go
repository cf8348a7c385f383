package store

import "time"

// Order statuses. Stored as plain strings; the seed data and
// InitiateReturn are the only writers.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusShipped    = "shipped"
	StatusDelivered  = "delivered"
	StatusReturned   = "returned"
	StatusCancelled  = "cancelled"
)

// ReturnWindowDays is how long after delivery an order stays returnable.
const ReturnWindowDays = 30

// Customer is an account record.
type Customer struct {
	ID                 int64
	Email              string
	Name               string
	FavoriteGenres     []string
	HasShippingAddress bool
	CreatedAt          time.Time
}

// Book is a catalog entry.
type Book struct {
	ID            int64
	Title         string
	Author        string
	Genre         string
	Price         float64
	Rating        float64
	Description   string
	StockQuantity int
}

// OrderItem is a line item with its book details joined in.
type OrderItem struct {
	Title        string
	Author       string
	Quantity     int
	PricePerUnit float64
}

// Order is an order with items and owner email joined in.
type Order struct {
	ID                int64
	OrderNumber       string
	CustomerEmail     string
	CustomerName      string
	Status            string
	TotalAmount       float64
	OrderDate         time.Time
	ShippingMethod    string
	TrackingNumber    string
	Carrier           string
	EstimatedDelivery *time.Time
	ShippedDate       *time.Time
	DeliveredDate     *time.Time
	ReturnRequested   bool
	ReturnApproved    bool
	RefundAmount      float64
	Items             []OrderItem
}

// Policy is an official policy document.
type Policy struct {
	PolicyType  string
	Title       string
	Content     string
	LastUpdated time.Time
}

// Ticket is a created support ticket.
type Ticket struct {
	TicketNumber string
	Category     string
	Subject      string
	Priority     string
	Status       string
	CreatedAt    time.Time
}
