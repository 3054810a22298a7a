package live

type subscribersResponse struct {
	StreamID    string `json:"streamId"`
	Subscribers int    `json:"subscribers"`
}
