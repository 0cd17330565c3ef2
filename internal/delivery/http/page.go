package http

import (
	"bytes"
	"html/template"

	"github.com/gofiber/fiber/v2"

	"github.com/roadwatch/console/internal/service"
)

type pageData struct {
	ID     string
	Anchor string
	State  service.ViewState
}

var viewPage = template.Must(template.New("view").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Incident map</title>
<link rel="stylesheet" href="/views/{{.ID}}/assets/leaflet.css">
<style>
body { font-family: sans-serif; margin: 0; }
#{{.Anchor}} { height: 80vh; }
.status { padding: 8px 12px; }
.error { color: #b91c1c; }
</style>
</head>
<body>
<div class="status">
  <strong>{{.State.Query.Latitude}}, {{.State.Query.Longitude}}</strong>
  radius {{.State.Query.Radius}} m, map {{.State.Map}}
  {{with .State.Error}}<span class="error">{{.}}</span>{{end}}
  {{with .State.LocationStatus}}<span>{{.}}</span>{{end}}
</div>
{{if eq .State.Map "ready"}}
<div id="{{.Anchor}}"></div>
<script src="/views/{{.ID}}/assets/leaflet.js"></script>
<script>
(function () {
  var api = "/api/v1/views/{{.ID}}";
  var map = L.map("{{.Anchor}}");
  var tiles = null, markers = L.layerGroup().addTo(map);
  map.on("click", function (e) {
    fetch(api + "/map/click", {
      method: "POST",
      headers: {"Content-Type": "application/json"},
      body: JSON.stringify({latitude: e.latlng.lat, longitude: e.latlng.lng})
    });
  });
  function draw(state) {
    map.setView([state.center[1], state.center[0]], state.zoom);
    if (state.tile && (!tiles || tiles._url !== state.tile.url)) {
      if (tiles) { map.removeLayer(tiles); }
      tiles = L.tileLayer(state.tile.url, {attribution: state.tile.attribution}).addTo(map);
    }
    markers.clearLayers();
    (state.features.features || []).forEach(function (f) {
      var p = f.properties, ll = [f.geometry.coordinates[1], f.geometry.coordinates[0]];
      var m = p.color
        ? L.circleMarker(ll, {color: p.color, fillOpacity: p.opacity, radius: p.diameter / 2})
        : L.marker(ll);
      m.bindPopup(p.popup).addTo(markers);
      if (p.open_popup) { m.openPopup(); }
    });
  }
  function poll() {
    fetch(api + "/map").then(function (r) { return r.ok ? r.json() : null; })
      .then(function (body) { if (body) { draw(body.data); } });
  }
  poll();
  setInterval(poll, 2000);
})();
</script>
{{end}}
</body>
</html>
`))

// ViewPage renders the browser page hosting the map of a view
func (h *Handler) ViewPage(c *fiber.Ctx) error {
	v, err := h.view(c)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := viewPage.Execute(&buf, pageData{
		ID:     v.ID.String(),
		Anchor: service.MapAnchor,
		State:  v.Snapshot(),
	}); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to render the page")
	}
	c.Type("html")
	return c.Send(buf.Bytes())
}
