package scraper

import "followers-monitor/internal/config"

// Selectors locate follower cells in the rendered followers timeline.
// They track the site's markup and change whenever it does.
type Selectors struct {
	Cell     string
	Name     string
	Username string
	Timeline string
}

func SelectorsFromConfig(cfg config.SelectorConfig) Selectors {
	return Selectors{
		Cell:     cfg.Cell,
		Name:     cfg.Name,
		Username: cfg.Username,
		Timeline: cfg.Timeline,
	}
}

// scrollFunc is a JS function that scrolls the window by most of a viewport
// and nudges the followers timeline, which virtualizes its rows.
func (s Selectors) scrollFunc() string {
	return `() => {
		const currentScroll = window.pageYOffset;
		const viewportHeight = window.innerHeight;
		window.scrollTo(0, currentScroll + viewportHeight * 0.7);
		const timeline = document.querySelector(` + jsString(s.Timeline) + `);
		if (timeline) {
			timeline.scrollBy(0, 400);
		}
		return true;
	}`
}

// countFunc is a JS function returning the number of rendered follower cells.
func (s Selectors) countFunc() string {
	return `() => document.querySelectorAll(` + jsString(s.Cell) + `).length`
}

// invoke turns a JS function into a call expression.
func invoke(fn string) string {
	return "(" + fn + ")()"
}
