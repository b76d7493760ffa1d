package classify

import "regexp"

// Built-in pattern sets for menu mode. Vocabulary covers English and Spanish
// since the target sites are predominantly restaurant cartas.

var menuInclude = mustCompile([]string{
	`(?i)\b(menus?|cartas?)\b`,
	`(?i)\b(comidas?|food|eat|dining|gastronomia|cocina|cuisine)\b`,
	`(?i)\b(platos?|dish(es)?|tapas|raciones)\b`,
	`(?i)\b(bebidas?|drinks?|vinos?|wine|bodega|cocktails?|cocteles)\b`,
	`(?i)\b(desayunos?|breakfast|brunch|almuerzos?|lunch|cenas?|dinner)\b`,
	`(?i)\b(postres?|desserts?)\b`,
})

var menuExclude = mustCompile([]string{
	// static assets and documents
	`(?i)\.(pdf|jpe?g|png|gif|svg|webp|ico|css|js|json|xml|zip|rar|docx?|xlsx?|pptx?|mp3|mp4|webm|avi|mov|woff2?|ttf|eot)$`,
	// CMS and auth surfaces
	`(?i)/(wp-admin|wp-login|wp-json|wp-content|admin|login|signin|logout|signup|register|password|account|mi-cuenta|my-account)(/|$)`,
	// legal and info boilerplate
	`(?i)/(privacy|privacidad|terms|terminos|condiciones|cookies?|legal|aviso-legal|politica[^/]*|about(-us)?|nosotros|quienes-somos|contact(o|-us)?|faq|help|ayuda|blog|news|noticias|prensa|press)(/|$)`,
	// ecommerce, feeds, tracking
	`(?i)/(cart|carrito|checkout|pago|payment|orders?|pedidos?|wishlist|compare|tag|tags|category|categoria|author|feed|rss|sitemap[^/]*)(/|$)`,
	`(?i)(^|/)(cdn-cgi|__)[^/]*(/|$)`,
	`(?i)[?&](utm_|fbclid|gclid)`,
})

// priorityPaths matches link paths that justify promoting their first
// segment to a priority branch. Deliberately narrower than menuInclude:
// only the menu/carta/food core, not drinks or meal vocabulary.
var priorityPaths = mustCompile([]string{
	`(?i)(^|/)[^/]*\b(cartas?|menus?)\b`,
	`(?i)(^|/)[^/]*\b(comidas?|food|platos?|gastronomia)\b`,
})

func mustCompile(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, raw := range patterns {
		compiled = append(compiled, regexp.MustCompile(raw))
	}
	return compiled
}
