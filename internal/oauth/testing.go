package oauth

// SetTestURLs points a provider at a test server. For testing only.
func (p *Provider) SetTestURLs(base string) {
	p.AuthURL = base + "/authorize"
	p.TokenURL = base + "/token"
	p.ProfileURL = base + "/me"
}
