package dtos

type ConfigRequest struct {
	Time                string   `json:"time"`
	Timezone            string   `json:"timezone"`
	WorkingDays         []string `json:"working_days"`
	ResponseWindowHours int      `json:"response_window_hours"`
	IsActive            *bool    `json:"is_active"`
	Questions           []string `json:"questions"`
}

type SetActiveRequest struct {
	Active bool `json:"active"`
}

type ResponseRequest struct {
	Yesterday string `json:"yesterday"`
	Today     string `json:"today"`
	Blockers  string `json:"blockers"`
}

type PassDTO struct {
	Pass      string `json:"pass"`
	Processed int    `json:"processed"`
	Opened    int    `json:"opened"`
	Closed    int    `json:"closed"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
}

type ErrorDTO struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}
