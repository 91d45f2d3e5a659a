package sandbox

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const (
	// AppDir is where the generated app lives inside the sandbox
	AppDir = "/home/user/app"
	// VitePIDFile holds the pid of the background dev server
	VitePIDFile = "/tmp/vite-process.pid"
)

// ScaffoldFiles returns the Vite + React + Tailwind starter keyed by path relative to AppDir
func ScaffoldFiles(vitePort int) map[string]string {
	return map[string]string{
		"package.json": `{
  "name": "sandbox-app",
  "version": "1.0.0",
  "type": "module",
  "scripts": {
    "dev": "vite --host",
    "build": "vite build",
    "preview": "vite preview"
  },
  "dependencies": {
    "react": "^18.2.0",
    "react-dom": "^18.2.0"
  },
  "devDependencies": {
    "@vitejs/plugin-react": "^4.0.0",
    "vite": "^4.3.9",
    "tailwindcss": "^3.3.0",
    "postcss": "^8.4.31",
    "autoprefixer": "^10.4.16"
  }
}`,
		"vite.config.js": fmt.Sprintf(`import { defineConfig } from 'vite'
import react from '@vitejs/plugin-react'

export default defineConfig({
  plugins: [react()],
  server: {
    host: '0.0.0.0',
    port: %d,
    strictPort: true,
    hmr: false,
    allowedHosts: ['.e2b.app', 'localhost', '127.0.0.1']
  }
})`, vitePort),
		"tailwind.config.js": `/** @type {import('tailwindcss').Config} */
export default {
  content: [
    "./index.html",
    "./src/**/*.{js,ts,jsx,tsx}",
  ],
  theme: {
    extend: {},
  },
  plugins: [],
}`,
		"postcss.config.js": `export default {
  plugins: {
    tailwindcss: {},
    autoprefixer: {},
  },
}`,
		"index.html": `<!DOCTYPE html>
<html lang="en">
  <head>
    <meta charset="UTF-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1.0" />
    <title>Sandbox App</title>
  </head>
  <body>
    <div id="root"></div>
    <script type="module" src="/src/main.jsx"></script>
  </body>
</html>`,
		"src/main.jsx": `import React from 'react'
import ReactDOM from 'react-dom/client'
import App from './App.jsx'
import './index.css'

ReactDOM.createRoot(document.getElementById('root')).render(
  <React.StrictMode>
    <App />
  </React.StrictMode>,
)`,
		"src/App.jsx": `function App() {
  return (
    <div className="min-h-screen bg-gray-900 text-white flex items-center justify-center p-4">
      <div className="text-center max-w-2xl">
        <p className="text-lg text-gray-400">
          Sandbox Ready<br/>
          Start building your React app with Vite and Tailwind CSS!
        </p>
      </div>
    </div>
  )
}

export default App`,
		"src/index.css": `@tailwind base;
@tailwind components;
@tailwind utilities;

body {
  font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, Cantarell, sans-serif;
  margin: 0;
  min-height: 100vh;
  background-color: rgb(17 24 39);
}`,
	}
}

// ScaffoldPaths returns the absolute sandbox paths of the starter files, sorted
func ScaffoldPaths(vitePort int) []string {
	files := ScaffoldFiles(vitePort)
	paths := make([]string, 0, len(files))
	for rel := range files {
		paths = append(paths, AppDir+"/"+rel)
	}
	sort.Strings(paths)
	return paths
}

// SetupScript writes the starter files and runs npm install. The file set is
// shipped base64-encoded so file contents never need Python escaping.
func SetupScript(vitePort int, legacyPeerDeps bool) (string, error) {
	payload, err := json.Marshal(ScaffoldFiles(vitePort))
	if err != nil {
		return "", fmt.Errorf("failed to encode scaffold: %w", err)
	}
	args := []string{"'npm'", "'install'"}
	if legacyPeerDeps {
		args = append(args, "'--legacy-peer-deps'")
	}

	return fmt.Sprintf(`import base64
import json
import os
import subprocess

root = %q
files = json.loads(base64.b64decode(%q).decode('utf-8'))

for rel, content in sorted(files.items()):
    path = os.path.join(root, rel)
    os.makedirs(os.path.dirname(path), exist_ok=True)
    with open(path, 'w') as f:
        f.write(content)
    print(f"FILE_WRITTEN:{rel}")

result = subprocess.run([%s], cwd=root, capture_output=True, text=True)
if result.returncode != 0:
    print(result.stderr[-2000:])
print(f"NPM_INSTALL_EXIT_CODE:{result.returncode}")
`, AppDir, base64.StdEncoding.EncodeToString(payload), strings.Join(args, ", ")), nil
}

// StartViteScript (re)starts the dev server in the background and records its pid
func StartViteScript() string {
	return fmt.Sprintf(`import os
import subprocess

os.chdir(%q)
subprocess.run(['pkill', '-f', 'vite'], capture_output=True)

process = subprocess.Popen(
    ['npm', 'run', 'dev'],
    stdout=subprocess.DEVNULL,
    stderr=subprocess.DEVNULL,
    start_new_session=True
)

with open(%q, 'w') as f:
    f.write(str(process.pid))

print(f"VITE_STARTED:{process.pid}")
`, AppDir, VitePIDFile)
}

// StopViteScript terminates the dev server recorded in the pid file
func StopViteScript() string {
	return fmt.Sprintf(`import os
import signal

try:
    with open(%q, 'r') as f:
        pid = int(f.read().strip())
        os.kill(pid, signal.SIGTERM)
        print("Stopped existing Vite process")
except Exception:
    print("No existing Vite process found")
`, VitePIDFile)
}
