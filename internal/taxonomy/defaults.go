package taxonomy

import "github.com/spendsight/spendsight/internal/model"

// Default returns the built-in household taxonomy.
func Default() *Taxonomy {
	t, err := New(defaultCategories())
	if err != nil {
		panic("taxonomy: invalid default categories: " + err.Error())
	}
	return t
}

func defaultCategories() []Category {
	return []Category{
		{Name: "Income", Subcategories: []string{"Salary", "Interest", "Dividends", "Reimbursement", "Other Income"}, Examples: []string{"PAYROLL", "DIRECT DEP", "DIVIDEND"}},
		{Name: "Transfers", Subcategories: []string{"Internal Transfer", "Peer-to-Peer", "Savings", "Investment"}, Examples: []string{"ONLINE TRANSFER", "ZELLE", "VENMO"}},
		{Name: "Bill Payments", Subcategories: []string{"Credit Card Payment", "Loan Payment"}, Examples: []string{"AUTOPAY", "Payment Thank You"}},
		{Name: "Housing", Subcategories: []string{"Rent", "Mortgage", "Maintenance", "HOA"}, Examples: []string{"RENT PAYMENT", "HOME DEPOT"}},
		{Name: "Utilities", Subcategories: []string{"Electricity & Gas", "Water", "Internet", "Phone"}, Examples: []string{"PG&E", "COMCAST", "AT&T"}},
		{Name: "Groceries", Subcategories: []string{"Supermarket", "Warehouse Club", "Specialty Food"}, Examples: []string{"SAFEWAY", "TRADER JOE'S", "COSTCO WHSE"}},
		{Name: "Dining", Subcategories: []string{"Restaurants", "Fast Food", "Coffee Shops", "Bars", "Food Delivery"}, Examples: []string{"STARBUCKS", "CHIPOTLE", "DOORDASH"}},
		{Name: "Transportation", Subcategories: []string{"Gas/Fuel", "Rideshare", "Parking", "Public Transit", "Tolls", "Auto Maintenance"}, Examples: []string{"SHELL OIL", "UBER *TRIP", "CLIPPER"}},
		{Name: "Shopping", Subcategories: []string{"Online Shopping", "Clothing", "Electronics", "Home Goods", "General Merchandise"}, Examples: []string{"AMAZON.COM", "TARGET", "APPLE STORE"}},
		{Name: "Entertainment", Subcategories: []string{"Streaming", "Movies & Events", "Games", "Hobbies"}, Examples: []string{"NETFLIX.COM", "SPOTIFY", "TICKETMASTER"}},
		{Name: "Travel", Subcategories: []string{"Flights", "Lodging", "Car Rental", "Other Travel"}, Examples: []string{"UNITED AIRLINES", "MARRIOTT", "AIRBNB"}},
		{Name: "Healthcare", Subcategories: []string{"Medical", "Pharmacy", "Dental", "Vision"}, Examples: []string{"CVS PHARMACY", "KAISER"}},
		{Name: "Insurance", Subcategories: []string{"Auto Insurance", "Health Insurance", "Home Insurance", "Life Insurance"}, Examples: []string{"GEICO", "STATE FARM"}},
		{Name: "Education", Subcategories: []string{"Tuition", "Books & Supplies", "Courses"}, Examples: []string{"UNIVERSITY", "COURSERA"}},
		{Name: "Personal Care", Subcategories: []string{"Hair & Beauty", "Fitness", "Spa"}, Examples: []string{"GREAT CLIPS", "EQUINOX"}},
		{Name: "Subscriptions", Subcategories: []string{"Software", "News & Media", "Memberships"}, Examples: []string{"GITHUB", "NYTIMES", "AMAZON PRIME"}},
		{Name: "Fees & Charges", Subcategories: []string{"Bank Fees", "Interest Charges", "Late Fees"}, Examples: []string{"MONTHLY SERVICE FEE", "INTEREST CHARGE"}},
		{Name: "Taxes", Examples: []string{"IRS", "FRANCHISE TAX BD"}},
		{Name: "Gifts & Donations", Subcategories: []string{"Charity", "Gifts"}, Examples: []string{"RED CROSS", "GOFUNDME"}},
		{Name: "Refunds", Examples: []string{"generic credits not tied to a merchant category"}},
		{Name: "Other"},
		{Name: model.Uncategorized},
	}
}
