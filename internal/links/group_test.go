package links

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mkLink(id int64, domain string) Link {
	return Link{ID: id, Domain: domain, URL: "https://" + domain + "/p"}
}

func TestGroupByDomain(t *testing.T) {
	t.Parallel()

	t.Run("domains below minimum fold into catch-all", func(t *testing.T) {
		t.Parallel()
		// Sorted by recency: most recently saved first.
		list := []Link{
			mkLink(5, "github.com"),
			mkLink(4, "example.org"),
			mkLink(3, "github.com"),
			mkLink(2, "blog.io"),
			mkLink(1, "github.com"),
		}
		groups := GroupByDomain(list, 2)
		require.Len(t, groups, 2)

		require.Equal(t, "github.com", groups[0].Label)
		require.Equal(t, []int64{5, 3, 1}, ids(groups[0].Links))

		require.Equal(t, CatchAllLabel, groups[1].Label)
		require.Equal(t, []int64{4, 2}, ids(groups[1].Links))
	})

	t.Run("group order follows most recent link", func(t *testing.T) {
		t.Parallel()
		list := []Link{
			mkLink(6, "b.com"),
			mkLink(5, "a.com"),
			mkLink(4, "b.com"),
			mkLink(3, "a.com"),
		}
		groups := GroupByDomain(list, 2)
		require.Equal(t, []string{"b.com", "a.com"}, labels(groups))
	})

	t.Run("minGroupSize one gives every domain its own group", func(t *testing.T) {
		t.Parallel()
		list := []Link{mkLink(2, "a.com"), mkLink(1, "b.com")}
		groups := GroupByDomain(list, 1)
		require.Equal(t, []string{"a.com", "b.com"}, labels(groups))
	})

	t.Run("zero minGroupSize treated as one", func(t *testing.T) {
		t.Parallel()
		groups := GroupByDomain([]Link{mkLink(1, "a.com")}, 0)
		require.Len(t, groups, 1)
		require.Equal(t, "a.com", groups[0].Label)
	})

	t.Run("empty list yields no groups", func(t *testing.T) {
		t.Parallel()
		require.Empty(t, GroupByDomain(nil, 2))
	})
}

func ids(list []Link) []int64 {
	out := make([]int64, len(list))
	for i, l := range list {
		out[i] = l.ID
	}
	return out
}

func labels(groups []Group) []string {
	out := make([]string, len(groups))
	for i, g := range groups {
		out[i] = g.Label
	}
	return out
}
