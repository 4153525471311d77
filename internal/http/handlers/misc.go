package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// ServiceName is the body of the index route.
const ServiceName = "PDF-Generator-Service"

// Index identifies the service.
func Index(c *fiber.Ctx) error {
	return c.SendString(ServiceName)
}

// TestAPIKey answers guarded requests that made it through the guard.
func TestAPIKey(c *fiber.Ctx) error {
	return c.SendString("passed")
}

// TestForm serves a form posting html to the conversion endpoint.
func TestForm(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.SendString(testFormHTML)
}

const testFormHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Test Post Form</title>
</head>
<body>

<form action="/pdf"
      method="POST"
      style="display: flex; flex-direction: column; align-items: center; gap: 1rem;">
    <label for="post_url">Target URL:</label>
    <input type="text" name="post_url" id="post_url" value="/pdf">

    <label for="html">HTML Content:</label>
    <textarea name="html" id="html" rows="10" cols="50"></textarea>

    <input type="submit" value="Submit">
</form>

<script>
    document.getElementById("post_url").addEventListener("input", function (e) {
        const form = e.target.closest("form");
        form.action = e.target.value;
    });
</script>
</body>
</html>
`
