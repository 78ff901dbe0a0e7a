package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xArmad/reposter/internal/types"
)

func samplePosts() []types.Post {
	return []types.Post{
		{AccountID: "main", MediaID: "vid1", Type: types.MediaVideo, Caption: "Beach Day"},
		{AccountID: "main", MediaID: "img1", Type: types.MediaImage, Caption: "coffee time"},
		{AccountID: "second", MediaID: "vid2", Type: types.MediaVideo, Caption: "at the beach"},
		{AccountID: "second", MediaID: "car1", Type: types.MediaCarousel, Caption: ""},
	}
}

func TestApplyEmptyFilterReturnsInputUnchanged(t *testing.T) {
	posts := samplePosts()
	out := Apply(types.Filter{}, posts)

	assert.Equal(t, posts, out)
	// The identity case does not even copy.
	assert.Same(t, &posts[0], &out[0])
}

func TestApplyPredicatesAreANDed(t *testing.T) {
	out := Apply(types.Filter{
		Types:    []types.MediaType{types.MediaVideo},
		Accounts: []string{"main"},
	}, samplePosts())

	assert.Len(t, out, 1)
	assert.Equal(t, "vid1", out[0].MediaID)
}

func TestApplySearchIsCaseInsensitive(t *testing.T) {
	out := Apply(types.Filter{Search: "BEACH"}, samplePosts())

	assert.Len(t, out, 2)
	assert.Equal(t, "vid1", out[0].MediaID)
	assert.Equal(t, "vid2", out[1].MediaID)
}

func TestApplyTypeSetMembership(t *testing.T) {
	out := Apply(types.Filter{
		Types: []types.MediaType{types.MediaImage, types.MediaCarousel},
	}, samplePosts())

	assert.Len(t, out, 2)
	assert.Equal(t, "img1", out[0].MediaID)
	assert.Equal(t, "car1", out[1].MediaID)
}

func TestApplyNoMatches(t *testing.T) {
	out := Apply(types.Filter{Search: "nothing like this"}, samplePosts())
	assert.Empty(t, out)
}

func TestMatchesEmptyCaptionFailsSearch(t *testing.T) {
	p := types.Post{MediaID: "car1", Type: types.MediaCarousel}
	assert.False(t, Matches(types.Filter{Search: "beach"}, p))
	assert.True(t, Matches(types.Filter{}, p))
}
