package model

// ServicePlan は料金プランを表す。プロセスの生存期間中は不変。
type ServicePlan struct {
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Price       string `json:"price"`
	PaymentLink string `json:"payment_link"`
}
