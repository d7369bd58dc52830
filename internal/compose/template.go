package compose

// tiledDocumentTemplate reassembles a captured screenshot as one page per tile.
// Each .page clips the full image, shifted by the tile offset.
const tiledDocumentTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        @page {
            size: {{.Page.Width}}px {{.Page.Height}}px;
            margin: 0;
        }
        html, body {
            margin: 0;
            padding: 0;
        }
        .page {
            width: {{.Page.Width}}px;
            height: {{.Page.Height}}px;
            page-break-after: always;
            break-after: page;
            overflow: hidden;
            position: relative;
            background: white;
            box-sizing: border-box;
        }
        .page:last-child {
            page-break-after: auto;
            break-after: auto;
        }
        .image-section {
            position: absolute;
            top: 0;
            left: 0;
            width: {{.ImageWidth}}px;
            height: {{.ImageHeight}}px;
            background-image: {{.Background}};
            background-repeat: no-repeat;
            background-size: {{.ImageWidth}}px {{.ImageHeight}}px;
        }
    </style>
</head>
<body>
{{- range .Tiles}}
    <div class="page" data-page="{{.Index}}">
        <div class="image-section" style="background-position: {{.XOffset}}px {{.YOffset}}px;"></div>
    </div>
{{- end}}
</body>
</html>
`
