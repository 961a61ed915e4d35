package services

// Arguments: title, greeting name, body paragraph, detail rows (pre-rendered
// <tr> elements), year, organization.
const noticeEmailHTML = `<!DOCTYPE html>
<html>
<head>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; line-height: 1.6; color: #1f2937; background-color: #f3f4f6; margin: 0; padding: 20px; }
.container { padding: 20px; max-width: 600px; margin: 20px auto; background-color: #ffffff; border: 1px solid #e5e7eb; border-radius: 8px; }
.header { font-size: 22px; font-weight: bold; color: #0f766e; margin-bottom: 15px; }
table { width: 100%%; border-collapse: collapse; margin-top: 10px; }
td { padding: 6px 8px; border-bottom: 1px solid #f1f5f9; }
td.label { color: #6b7280; width: 40%%; }
.footer { margin-top: 20px; font-size: 12px; color: #6b7280; text-align: center; }
</style>
</head>
<body>
  <div class="container">
    <div class="header">%s</div>
    <p>Hola %s,</p>
    <p>%s</p>
    <table>%s</table>
    <div class="footer">
      © %d %s
    </div>
  </div>
</body>
</html>`

const noticeRowHTML = `<tr><td class="label">%s</td><td>%s</td></tr>`
