package fetcher

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagen/matrixiptv/internal/models"
)

func TestParseHeaderEPGURL(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "header with guide", text: "#EXTM3U x-tvg-url=\"http://x/epg.xml\"\n#EXTINF:-1,A\nhttp://a", want: "http://x/epg.xml"},
		{name: "crlf header", text: "#EXTM3U x-tvg-url=\"http://x/epg.xml\"\r\n", want: "http://x/epg.xml"},
		{name: "attribute name is case-insensitive", text: `#EXTM3U X-TVG-URL="http://x/g.xml"`, want: "http://x/g.xml"},
		{name: "value is trimmed", text: `#EXTM3U x-tvg-url=" http://x/g.xml "`, want: "http://x/g.xml"},
		{name: "header without guide", text: "#EXTM3U\n#EXTINF:-1,A\nhttp://a", want: ""},
		{name: "empty guide value", text: `#EXTM3U x-tvg-url=""`, want: ""},
		{name: "no header", text: "#EXTINF:-1,A\nhttp://a", want: ""},
		{name: "guide on second line is ignored", text: "#EXTM3U\n#EXTM3U x-tvg-url=\"http://x/epg.xml\"", want: ""},
		{name: "leading whitespace is not a header", text: ` #EXTM3U x-tvg-url="http://x/epg.xml"`, want: ""},
		{name: "empty text", text: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseHeaderEPGURL(tt.text))
		})
	}
}

func TestParseChannels(t *testing.T) {
	text := strings.Join([]string{
		`#EXTM3U x-tvg-url="http://x/epg.xml"`,
		`#EXTINF:-1 tvg-id="uni.us" group-title="Telemundo",Telemundo East`,
		`  http://streams/1.m3u8  `,
		`#EXTINF:-1 group-title="",No Group`,
		`http://streams/2.m3u8`,
		`#EXTINF:-1 tvg-id="" group-title="ECUADOR;Random Group"`,
		`http://streams/3.m3u8`,
	}, "\r\n")

	got := ParseChannels(text)
	want := []models.ChannelRecord{
		{Name: "Telemundo East", URL: "http://streams/1.m3u8", Group: "Telemundo", TvgID: "uni.us"},
		{Name: "No Group", URL: "http://streams/2.m3u8", Group: ""},
		{Name: "Channel", URL: "http://streams/3.m3u8", Group: "ECUADOR;Random Group"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseChannels mismatch (-want +got):\n%s", diff)
	}
}

func TestParseChannelsCountAndOrder(t *testing.T) {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	for i := 0; i < 25; i++ {
		fmt.Fprintf(&b, "#EXTINF:-1 group-title=\"G%d\",Ch %d\nhttp://s/%d\n", i, i, i)
	}

	got := ParseChannels(b.String())
	require.Len(t, got, 25)
	for i, rec := range got {
		assert.Equal(t, fmt.Sprintf("Ch %d", i), rec.Name)
		assert.Equal(t, fmt.Sprintf("http://s/%d", i), rec.URL)
	}
}

func TestParseChannelsEdgeCases(t *testing.T) {
	t.Run("trailing entry without url", func(t *testing.T) {
		got := ParseChannels("#EXTM3U\n#EXTINF:-1,Last")
		require.Len(t, got, 1)
		assert.Equal(t, "", got[0].URL)
		assert.Equal(t, "Last", got[0].Name)
	})

	t.Run("entry followed by entry takes it as url", func(t *testing.T) {
		got := ParseChannels("#EXTINF:-1,A\n#EXTINF:-1,B\nhttp://b")
		require.Len(t, got, 2)
		assert.Equal(t, "#EXTINF:-1,B", got[0].URL)
		assert.Equal(t, "http://b", got[1].URL)
	})

	t.Run("name is everything after the first comma", func(t *testing.T) {
		got := ParseChannels("#EXTINF:-1 group-title=\"News\",CNN, International\nhttp://c")
		require.Len(t, got, 1)
		assert.Equal(t, "CNN, International", got[0].Name)
	})

	t.Run("attribute names are case-insensitive", func(t *testing.T) {
		got := ParseChannels("#EXTINF:-1 TVG-ID=\"x.1\" Group-Title=\"Peru\",X\nhttp://x")
		require.Len(t, got, 1)
		assert.Equal(t, "x.1", got[0].TvgID)
		assert.Equal(t, "Peru", got[0].Group)
	})

	t.Run("lowercase marker is not an entry", func(t *testing.T) {
		assert.Empty(t, ParseChannels("#extinf:-1,A\nhttp://a"))
	})

	t.Run("unrelated lines ignored", func(t *testing.T) {
		got := ParseChannels("#EXTM3U\n#EXTVLCOPT:http-user-agent=x\nhttp://orphan\n#EXTINF:-1,A\nhttp://a\n")
		require.Len(t, got, 1)
		assert.Equal(t, "http://a", got[0].URL)
	})

	t.Run("repeated entries are kept", func(t *testing.T) {
		got := ParseChannels("#EXTINF:-1,A\nhttp://a\n#EXTINF:-1,A\nhttp://a")
		assert.Len(t, got, 2)
	})

	t.Run("no entries", func(t *testing.T) {
		assert.Empty(t, ParseChannels("#EXTM3U\n"))
	})
}

func TestParsePlaylist(t *testing.T) {
	p := ParsePlaylist("#EXTM3U x-tvg-url=\"http://x/epg.xml\"\n#EXTINF:-1,A\nhttp://a\n")
	assert.Equal(t, "http://x/epg.xml", p.EPGURL)
	require.Len(t, p.Records, 1)
	assert.Equal(t, "A", p.Records[0].Name)
}
