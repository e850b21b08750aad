package feed

// ApiResponse models the top-level structure of the upstream feed's response.
type ApiResponse struct {
	Code int `json:"code"`
	Data struct {
		Page     int       `json:"page"`
		PageSize int       `json:"pageSize"`
		Total    int       `json:"total"`
		Items    []ApiItem `json:"items"`
	} `json:"data"`
}

// ApiItem is one parking request published upstream.
type ApiItem struct {
	ID       string  `json:"id"`
	Occupant string  `json:"occupant"`
	Tier     int     `json:"tier"`
	Slot     string  `json:"slot"`
	Minutes  float64 `json:"minutes"`
}

// key identifies an item for de-duplication across polls.
func (i ApiItem) key() string {
	if i.ID != "" {
		return "id:" + i.ID
	}
	return "occupant:" + i.Occupant
}
