package invitations

import "context"

// SiteResolver reports the tenant site ambient to the current call, or empty
// when there is none.
type SiteResolver interface {
	CurrentSite(ctx context.Context) string
}

type contextKey string

const siteKey contextKey = "site"

// WithSite returns a context carrying the given tenant site.
func WithSite(ctx context.Context, site string) context.Context {
	return context.WithValue(ctx, siteKey, site)
}

// SiteFromContext extracts the tenant site from the context, or empty.
func SiteFromContext(ctx context.Context) string {
	if site, ok := ctx.Value(siteKey).(string); ok {
		return site
	}
	return ""
}

// ContextSiteResolver resolves the current site from the request context.
type ContextSiteResolver struct{}

func (ContextSiteResolver) CurrentSite(ctx context.Context) string {
	return SiteFromContext(ctx)
}

// StaticSiteResolver always resolves to a fixed site. Useful for single
// tenant deployments and tests.
type StaticSiteResolver string

func (s StaticSiteResolver) CurrentSite(context.Context) string {
	return string(s)
}
