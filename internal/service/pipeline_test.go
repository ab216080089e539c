package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagen/matrixiptv/internal/category"
	"github.com/voyagen/matrixiptv/internal/models"
)

const twoChannelPlaylist = "#EXTM3U x-tvg-url=\"http://x/epg.xml\"\n" +
	"#EXTINF:-1 tvg-id=\"t1\" group-title=\"Telemundo\",Telemundo HD\n" +
	"http://stream/1\n" +
	"#EXTINF:-1 group-title=\"\",Mystery\n" +
	"http://stream/2\n"

func TestLoadEndToEnd(t *testing.T) {
	res := Load(twoChannelPlaylist)

	assert.True(t, res.Success)
	assert.NoError(t, res.Err())
	assert.Equal(t, "http://x/epg.xml", res.EPGURL)
	assert.Equal(t, []string{"Other", "Univisión/Unimas/Telemundo"}, res.Categories)
	require.Len(t, res.Channels, 2)

	first := res.Channels[0]
	assert.Equal(t, "Telemundo HD-0", first.ID)
	assert.Equal(t, models.StatusLive, first.Status)
	assert.Equal(t, "t1", first.TvgID)
	assert.Equal(t, "http://stream/1", first.URL)
	assert.Equal(t, []string{"Univisión/Unimas/Telemundo"}, first.Groups)

	second := res.Channels[1]
	assert.Equal(t, "Mystery-1", second.ID)
	assert.Equal(t, []string{category.Other}, second.Groups)
	assert.Empty(t, second.TvgID)
}

func TestLoadEmptyPlaylist(t *testing.T) {
	for _, text := range []string{"", "#EXTM3U\n", "#EXTM3U x-tvg-url=\"http://x/epg.xml\"\n# comment\n"} {
		res := Load(text)
		assert.False(t, res.Success)
		assert.True(t, errors.Is(res.Err(), ErrEmptyPlaylist))
		assert.NotNil(t, res.Channels)
		assert.Empty(t, res.Channels)
		assert.NotNil(t, res.Categories)
		assert.Empty(t, res.Categories)
	}
}

func TestLoadSuccessWithoutEPGURL(t *testing.T) {
	res := Load("#EXTINF:-1,Solo\nhttp://s/1\n")
	assert.True(t, res.Success)
	assert.Empty(t, res.EPGURL)
}

func TestLoadMultiGroupChannels(t *testing.T) {
	text := "#EXTM3U\n" +
		"#EXTINF:-1 group-title=\"ECUADOR;Random Group\",A\nhttp://a\n" +
		"#EXTINF:-1 group-title=\"Brasil\",B\nhttp://b\n" +
		"#EXTINF:-1 group-title=\"ecuador\",A\nhttp://a\n"
	res := Load(text)

	require.Len(t, res.Channels, 3)
	assert.ElementsMatch(t, []string{"ECUADOR", "Random Group"}, res.Channels[0].Groups)
	assert.Equal(t, "A-0", res.Channels[0].ID)
	assert.Equal(t, "A-2", res.Channels[2].ID, "duplicates keep their own positional id")
	assert.Equal(t, []string{"BRAZIL", "ECUADOR", "Random Group"}, res.Categories)
}

func TestLoadWithCustomMapper(t *testing.T) {
	m := category.NewMapper([]category.Category{{Label: "News", Aliases: []string{"noticias"}}})
	res := LoadWith(m, "#EXTINF:-1 group-title=\"Noticias 24\",N\nhttp://n\n")
	require.Len(t, res.Channels, 1)
	assert.Equal(t, []string{"News"}, res.Categories)
}
