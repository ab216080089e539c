package models

// EPGProgram is one <programme> entry from an XMLTV guide.
type EPGProgram struct {
	Title string `json:"title"`
	Time  string `json:"time"` // "<start> - <stop>" as written in the guide
	Desc  string `json:"desc"`
}

// EPGIndex maps an XMLTV channel id to its programmes in document order.
type EPGIndex map[string][]EPGProgram

// Lookup returns the programmes for tvgID, or nil when there are none.
func (idx EPGIndex) Lookup(tvgID string) []EPGProgram {
	if tvgID == "" {
		return nil
	}
	return idx[tvgID]
}

// ChannelCount returns the number of channels with at least one programme.
func (idx EPGIndex) ChannelCount() int { return len(idx) }
