package fetcher

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/voyagen/matrixiptv/internal/models"
)

const (
	noTitle       = "No title"
	noDescription = "No description"
)

// programmeXML is a single <programme> element of an XMLTV document.
type programmeXML struct {
	Channel string   `xml:"channel,attr"`
	Start   string   `xml:"start,attr"`
	Stop    string   `xml:"stop,attr"`
	Titles  []string `xml:"title"`
	Descs   []string `xml:"desc"`
}

func (p programmeXML) program() models.EPGProgram {
	return models.EPGProgram{
		Title: firstOr(p.Titles, noTitle),
		Time:  p.Start + " - " + p.Stop,
		Desc:  firstOr(p.Descs, noDescription),
	}
}

func firstOr(values []string, placeholder string) string {
	if len(values) == 0 || values[0] == "" {
		return placeholder
	}
	return values[0]
}

// IndexPrograms reads an XMLTV document and groups its programmes by channel
// id in document order. Programmes without a channel attribute are skipped.
// A document that is not well-formed XML, including content after the root
// element, yields an error wrapping ErrParseFailure.
func IndexPrograms(r io.Reader) (models.EPGIndex, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel

	idx := models.EPGIndex{}
	depth := 0
	sawRoot, rootClosed := false, false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: xmltv: %v", ErrParseFailure, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if rootClosed {
				return nil, fmt.Errorf("%w: xmltv: element <%s> after root element", ErrParseFailure, t.Name.Local)
			}
			sawRoot = true
			if t.Name.Local != "programme" {
				depth++
				continue
			}
			var p programmeXML
			if err := dec.DecodeElement(&p, &t); err != nil {
				return nil, fmt.Errorf("%w: xmltv programme: %v", ErrParseFailure, err)
			}
			if depth == 0 {
				rootClosed = true
			}
			if p.Channel == "" {
				continue
			}
			idx[p.Channel] = append(idx[p.Channel], p.program())
		case xml.EndElement:
			depth--
			if depth == 0 {
				rootClosed = true
			}
		case xml.CharData:
			if rootClosed && len(bytes.TrimSpace(t)) > 0 {
				return nil, fmt.Errorf("%w: xmltv: text after root element", ErrParseFailure)
			}
		}
	}
	if !sawRoot {
		return nil, fmt.Errorf("%w: xmltv: no root element", ErrParseFailure)
	}
	if !rootClosed {
		return nil, fmt.Errorf("%w: xmltv: root element not closed", ErrParseFailure)
	}
	return idx, nil
}

// IndexProgramsString is IndexPrograms over an in-memory document.
func IndexProgramsString(text string) (models.EPGIndex, error) {
	return IndexPrograms(strings.NewReader(text))
}
