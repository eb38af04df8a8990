package projection

import "fmt"

// Badge is the count shown on the view, with its tooltip.
type Badge struct {
	Value   int    `json:"value"`
	Tooltip string `json:"tooltip"`
}

// BadgeFor renders the badge for an outdated count.
func BadgeFor(outdated int) Badge {
	switch {
	case outdated <= 0:
		return Badge{}
	case outdated == 1:
		return Badge{Value: 1, Tooltip: "1 update available"}
	default:
		return Badge{Value: outdated, Tooltip: fmt.Sprintf("%d updates available", outdated)}
	}
}
