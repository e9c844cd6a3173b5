package dto

// Res is the generic response envelope used by handlers that do not have a
// richer payload to return.
type Res struct {
	ResponseCode    string      `json:"responseCode"`
	ResponseMessage string      `json:"responseMessage"`
	Data            interface{} `json:"data,omitempty"`
}
