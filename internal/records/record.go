package records

// Record is one customer row. Fields map positionally onto the fixed
// workbook columns; a missing field writes as an empty cell.
type Record struct {
	CustomerNumber string `json:"customer_number"`
	Timestamp      string `json:"timestamp"`
	Name           string `json:"name"`
	Phone          string `json:"phone"`
	Email          string `json:"email"`
	Address        string `json:"address"`
	Product        string `json:"product"`
	Quantity       string `json:"quantity"`
	Price          string `json:"price"`
	Status         string `json:"status"`
	Notes          string `json:"notes"`
	SessionID      string `json:"session_id"`
}

const defaultStatus = "pending"

var header = []string{
	"Customer Number",
	"Timestamp",
	"Name",
	"Phone",
	"Email",
	"Address",
	"Product",
	"Quantity",
	"Price",
	"Status",
	"Notes",
	"Session ID",
}

// NumColumns is the fixed width of the customer sheet.
const NumColumns = 12

func (r Record) row() []string {
	status := r.Status
	if status == "" {
		status = defaultStatus
	}
	return []string{
		r.CustomerNumber,
		r.Timestamp,
		r.Name,
		r.Phone,
		r.Email,
		r.Address,
		r.Product,
		r.Quantity,
		r.Price,
		status,
		r.Notes,
		r.SessionID,
	}
}
