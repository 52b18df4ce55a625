package extractor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bboxXHTML = `<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>statement</title></head>
<body>
<doc>
  <page width="595.0" height="842.0">
    <flow><block>
      <line xMin="50" yMin="90" xMax="300" yMax="100">
        <word xMin="50" yMin="90" xMax="80" yMax="100">03/15</word>
        <word xMin="86" yMin="90" xMax="128" yMax="100">DEPOSIT</word>
        <word xMin="250" yMin="91" xMax="300" yMax="101">1,200.00</word>
      </line>
      <line xMin="50" yMin="60" xMax="120" yMax="70">
        <word xMin="50" yMin="60" xMax="120" yMax="70">Statement</word>
      </line>
    </block></flow>
  </page>
  <page width="595.0" height="842.0">
    <flow><block><line><word xMin="50" yMin="60" xMax="90" yMax="70">Page 2</word></line></block></flow>
  </page>
</doc>
</body>
</html>`

func TestParseBBox(t *testing.T) {
	pages, err := parseBBox(strings.NewReader(bboxXHTML))
	require.NoError(t, err)
	require.Len(t, pages, 2)

	p := pages[0]
	assert.Equal(t, 1, p.Number)
	assert.Equal(t, 595.0, p.Width)
	assert.Equal(t, 842.0, p.Height)
	assert.Equal(t, SourcePoppler, p.Source)
	require.Len(t, p.Lines, 2)
	assert.Equal(t, "Statement", p.Lines[0].Text())
	assert.Equal(t, "03/15 DEPOSIT 1,200.00", p.Lines[1].Text())
	assert.Equal(t, 250.0, p.Lines[1].Tokens[2].X0)
	assert.Equal(t, 300.0, p.Lines[1].Tokens[2].X1)

	assert.Equal(t, 2, pages[1].Number)
}

func TestParseBBoxWithoutPages(t *testing.T) {
	_, err := parseBBox(strings.NewReader("<html><body><p>nothing</p></body></html>"))
	assert.Error(t, err)
}
