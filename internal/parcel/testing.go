package parcel

// SetTestURL overrides the search URL on a client for testing.
// This should only be used in tests.
func SetTestURL(c *Client, searchURL string) {
	if searchURL != "" {
		c.searchURL = searchURL
	}
}
