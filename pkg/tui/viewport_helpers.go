package tui

import "github.com/charmbracelet/bubbles/viewport"

// shouldGotoBottom проверяет, находится ли пользователь в нижней позиции.
func shouldGotoBottom(vp viewport.Model) bool {
	return vp.YOffset+vp.Height >= vp.TotalLineCount()
}

// setContentSticky заменяет контент viewport.
//
// Позиция сверяется ДО замены: если пользователь был внизу, viewport
// остаётся прижатым к последней строке, иначе смещение обрезается
// по новой длине.
func setContentSticky(vp *viewport.Model, content string) {
	wasAtBottom := shouldGotoBottom(*vp)
	vp.SetContent(content)
	if wasAtBottom {
		vp.GotoBottom()
		return
	}
	maxOffset := max(vp.TotalLineCount()-vp.Height, 0)
	if vp.YOffset > maxOffset {
		vp.SetYOffset(maxOffset)
	}
}
