package links

// CatchAllLabel names the overflow group for domains below the minimum
// group size.
const CatchAllLabel = "From around the Web"

// GroupByDomain buckets links into per-domain groups. Domains with at
// least minGroupSize links get their own group labeled by domain; the
// rest fold into a single catch-all group. The input is expected sorted
// by saved-at descending; group order follows first occurrence in that
// scan and links keep their order within each group.
func GroupByDomain(list []Link, minGroupSize int) []Group {
	if minGroupSize < 1 {
		minGroupSize = 1
	}

	counts := make(map[string]int, len(list))
	for _, l := range list {
		counts[l.Domain]++
	}

	index := make(map[string]int, len(counts))
	groups := make([]Group, 0, len(counts))
	for _, l := range list {
		label := CatchAllLabel
		if counts[l.Domain] >= minGroupSize {
			label = l.Domain
		}
		i, ok := index[label]
		if !ok {
			i = len(groups)
			index[label] = i
			groups = append(groups, Group{Label: label})
		}
		groups[i].Links = append(groups[i].Links, l)
	}
	return groups
}
