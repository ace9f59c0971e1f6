package citation

import (
	_ "embed"
	"fmt"
	"strings"
)

//go:embed assets/citation.css
var styleSheet string

//go:embed assets/citation.js
var script string

// handlerEscaper prepares a value for embedding inside a single-quoted
// JavaScript string within an HTML event-handler attribute.
var handlerEscaper = strings.NewReplacer(`'`, `\'`, `"`, `\"`)

// HTML renders the inline fragment for one citation: the claim text as a
// clickable span that opens the shared modal, with a hover tooltip previewing
// the image. A failed image load swaps the tooltip image for an inline
// "Image not available" indicator instead of an empty box.
func (c Citation) HTML() string {
	escapedURL := handlerEscaper.Replace(c.ImageURL)
	escapedText := handlerEscaper.Replace(c.Text)

	return fmt.Sprintf(`
        <span class="citation" onclick="openModal('%s', '%s')">
            %s
            <div class="citation-tooltip">
                <img src="%s" alt="Citation" class="citation-image" onerror="this.style.display='none'; this.nextElementSibling.style.display='block'; this.nextElementSibling.textContent='Image not available: %s';">
                <div style="display:none; color:#666; font-size:12px; text-align:center; margin-top:8px;"></div>
            </div>
        </span>
        `, escapedURL, escapedText, c.Text, c.ImageURL, escapedURL)
}

// modalHTML is the shared per-message modal. openModal and closeModal in the
// script block target these element IDs.
const modalHTML = `
        <div id="citation-modal" class="citation-modal">
            <div class="citation-modal-content">
                <span class="close-modal" onclick="closeModal()">&times;</span>
                <img id="modal-image" src="" alt="Citation Image">
                <p id="modal-text"></p>
            </div>
        </div>
        `

// MessageHTML wraps processed content into a complete, self-contained message
// block: stylesheet, modal script, the shared modal markup, the content
// itself, and a citation-count badge when the message cited anything.
func MessageHTML(content string, citationCount int) string {
	badge := ""
	if citationCount > 0 {
		badge = fmt.Sprintf(`<span class="citation-count">%d</span>`, citationCount)
	}

	return fmt.Sprintf(`
        <style>
%s
        </style>
        <script>
%s
        </script>
%s
        <div class="message-content">
            %s
            %s
        </div>
        `, styleSheet, script, modalHTML, content, badge)
}
