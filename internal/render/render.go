// Package render builds the editor surface from a parameter set.
package render

import (
	"html/template"
	"io"

	"github.com/micro-nova/slidered/internal/models"
)

// Controls returns one range control per parameter, in parameter order.
// Values are reported as stored, even when they fall outside
// [models.ParamMin, models.ParamMax]; the surface clamps on the next edit.
func Controls(params *models.Params) []models.Control {
	out := make([]models.Control, 0, params.Len())
	params.Each(func(key string, value float64) {
		out = append(out, models.Control{
			ID:    key,
			Label: key,
			Min:   models.ParamMin,
			Max:   models.ParamMax,
			Value: value,
		})
	})
	return out
}

// PageData is the input of Page.
type PageData struct {
	Title    string
	Socket   string // websocket path of the session
	Controls []models.Control
}

var page = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
</head>
<body>
  <div id="controls">
  {{- range .Controls}}
    <label for="{{.ID}}">{{.Label}}: </label>
    <input type="range" id="{{.ID}}" name="{{.ID}}" min="{{.Min}}" max="{{.Max}}" value="{{.Value}}" class="slider">
    <span id="{{.ID}}-value">{{.Value}}</span><br/>
  {{- end}}
  </div>
  <script>
    const proto = location.protocol === 'https:' ? 'wss://' : 'ws://'
    const sock = new WebSocket(proto + location.host + {{.Socket}} + location.search)
    function bind(slider) {
      slider.addEventListener('input', () => {
        sock.send(JSON.stringify({command: 'valueChanged', key: slider.name, value: slider.value}))
        document.getElementById(slider.name + '-value').textContent = slider.value
      })
    }
    function draw(controls) {
      const root = document.getElementById('controls')
      root.textContent = ''
      for (const c of controls) {
        const label = document.createElement('label')
        label.htmlFor = c.id
        label.textContent = c.label + ': '
        const input = document.createElement('input')
        Object.assign(input, {type: 'range', id: c.id, name: c.id, min: c.min, max: c.max, value: c.value, className: 'slider'})
        const span = document.createElement('span')
        span.id = c.id + '-value'
        span.textContent = c.value
        root.append(label, input, span, document.createElement('br'))
        bind(input)
      }
    }
    document.querySelectorAll('.slider').forEach(bind)
    sock.onmessage = ev => {
      const msg = JSON.parse(ev.data)
      if (msg.command === 'render') draw(msg.controls)
    }
  </script>
</body>
</html>
`))

// Page writes the HTML editor surface.
func Page(w io.Writer, data PageData) error {
	return page.Execute(w, data)
}
