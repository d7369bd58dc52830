package render

import "fmt"

const contentHeightScript = `() => {
  const body = document.body;
  const html = document.documentElement;
  if (!body || !html) return 0;
  return Math.ceil(Math.max(
    body.scrollHeight,
    body.offsetHeight,
    html.clientHeight,
    html.scrollHeight,
    html.offsetHeight
  ));
}`

const contentSizeScript = `() => {
  const body = document.body;
  const html = document.documentElement;
  if (!body || !html) return { width: 0, height: 0 };
  return {
    width: Math.ceil(Math.max(body.scrollWidth, html.scrollWidth)),
    height: Math.ceil(Math.max(body.scrollHeight, html.scrollHeight))
  };
}`

// waitImagesScript resolves once every <img> has loaded or failed, capping each
// image at perImageMillis.
const waitImagesScript = `(perImageMillis) => Promise.all(
  Array.from(document.images).map(img => {
    if (img.complete) return true;
    return new Promise(resolve => {
      img.addEventListener('load', () => resolve(true), { once: true });
      img.addEventListener('error', () => resolve(false), { once: true });
      setTimeout(() => resolve(false), perImageMillis);
    });
  })
).then(results => results.filter(ok => !ok).length)`

const waitFontsScript = `() => {
  if (document && document.fonts && document.fonts.ready) {
    return Promise.race([
      document.fonts.ready.then(() => true),
      new Promise(resolve => setTimeout(() => resolve(false), 3000))
    ]);
  }
  return true;
}`

// waitBackgroundScript decodes the reassembly image before printing so the
// first page is not blank.
const waitBackgroundScript = `() => {
  const el = document.querySelector('.image-section');
  if (!el) return true;
  const m = /^url\(["']?(.*?)["']?\)$/.exec(getComputedStyle(el).backgroundImage);
  if (!m) return true;
  return new Promise(resolve => {
    const img = new Image();
    img.onload = () => img.decode().then(() => resolve(true), () => resolve(true));
    img.onerror = () => resolve(false);
    img.src = m[1];
  });
}`

// singlePageCSS forces a fixed width and suppresses every page break so the
// whole document prints on one sheet.
func singlePageCSS(widthPx int) string {
	return fmt.Sprintf(`
  @page {
    margin: 0 !important;
    padding: 0 !important;
    size: auto;
  }
  * {
    page-break-inside: avoid !important;
    page-break-after: avoid !important;
    page-break-before: avoid !important;
    break-inside: avoid !important;
    break-after: avoid !important;
    break-before: avoid !important;
    orphans: 999 !important;
    widows: 999 !important;
  }
  html, body {
    margin: 0 !important;
    padding: 0 !important;
    box-sizing: border-box;
    overflow: visible !important;
    height: auto !important;
    min-height: auto !important;
    max-height: none !important;
    width: %[1]dpx !important;
    max-width: %[1]dpx !important;
  }
`, widthPx)
}

// captureCSS pins the document width before a full-page screenshot.
func captureCSS(widthPx int) string {
	return fmt.Sprintf(`
  @page {
    margin: 0 !important;
    padding: 0 !important;
    size: auto;
  }
  * {
    page-break-inside: avoid !important;
    page-break-after: avoid !important;
    page-break-before: avoid !important;
  }
  html, body {
    margin: 0 !important;
    padding: 0 !important;
    box-sizing: border-box;
    overflow: visible !important;
    height: auto !important;
    width: %[1]dpx !important;
    max-width: %[1]dpx !important;
  }
`, widthPx)
}

// paginatedCSS lets the print engine break pages at the given size while
// keeping short runs of lines together.
func paginatedCSS(widthPx, heightPx int) string {
	return fmt.Sprintf(`
  @page {
    padding: 0;
    size: %[1]dpx %[2]dpx;
  }
  * {
    break-inside: auto !important;
    page-break-inside: auto !important;
    orphans: 3 !important;
    widows: 3 !important;
  }
  html, body {
    margin: 0 !important;
    padding: 0 !important;
    box-sizing: border-box;
    width: %[1]dpx !important;
    max-width: %[1]dpx !important;
  }
`, widthPx, heightPx)
}
