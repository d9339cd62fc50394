// ABOUTME: Default live preview page shown before any document is saved

package model

// DefaultDocumentHTML is the starter page of the code studio.
const DefaultDocumentHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>FlareOS Live Preview</title>
    <style>
      body { font-family: system-ui, -apple-system, Segoe UI, Roboto, Inter, sans-serif; padding: 20px; }
      .card { border: 1px solid #e5e7eb; border-radius: 12px; padding: 16px; box-shadow: 0 10px 30px rgba(0,0,0,0.06); }
      button { background: black; color: white; padding: 8px 12px; border-radius: 8px; border: none; }
    </style>
  </head>
  <body>
    <div class="card">
      <h1>Welcome to FlareOS Live Preview</h1>
      <p>Edit the code on the left to see changes in real-time.</p>
      <button onclick="alert('Hello from the preview!')">Click me</button>
    </div>
  </body>
</html>`
