package seed

// ObjectTypeDef defines a standard object type available before any record is
// written.
type ObjectTypeDef struct {
	ID       string
	Singular string
	Plural   string
}

// StandardTypes maps object type names to their definitions.
var StandardTypes = map[string]ObjectTypeDef{
	"contacts":  {ID: "0-1", Singular: "Contact", Plural: "Contacts"},
	"companies": {ID: "0-2", Singular: "Company", Plural: "Companies"},
	"deals":     {ID: "0-3", Singular: "Deal", Plural: "Deals"},
	"tickets":   {ID: "0-5", Singular: "Ticket", Plural: "Tickets"},
	"products":  {ID: "0-7", Singular: "Product", Plural: "Products"},
	"tasks":     {ID: "0-27", Singular: "Task", Plural: "Tasks"},
	"calls":     {ID: "0-48", Singular: "Call", Plural: "Calls"},
	"employees": {ID: "1-1", Singular: "Employee", Plural: "Employees"},
	"orders":    {ID: "0-123", Singular: "Order", Plural: "Orders"},
	"invoices":  {ID: "0-53", Singular: "Invoice", Plural: "Invoices"},
}
