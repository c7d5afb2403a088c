package webui

const indexHTML = `
<!DOCTYPE html>
<html>
<head>
    <title>Camera Task Assistant</title>
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        :root { color-scheme: dark; }
        * { box-sizing: border-box; }
        body { margin: 0; font-family: -apple-system, "Segoe UI", Roboto, sans-serif; background: #15181c; color: #e6e8ea; }
        .app { max-width: 1200px; margin: 0 auto; padding: 16px; }
        .header { display: flex; justify-content: space-between; align-items: center; margin-bottom: 14px; }
        .title { font-size: 20px; font-weight: 600; }
        .banner { padding: 8px 12px; border-radius: 6px; font-size: 13px; display: none; }
        .banner.ok { display: block; background: #173c26; color: #7ee2a8; }
        .banner.err { display: block; background: #40191c; color: #f2a0a6; }
        .grid { display: grid; grid-template-columns: 1.2fr 1fr; gap: 14px; }
        .panel { background: #1d2127; border: 1px solid #2a2f37; border-radius: 8px; padding: 14px; }
        .panel h2 { margin: 0 0 4px; font-size: 15px; }
        .panel-subtitle { margin: 0 0 10px; font-size: 12px; color: #8b939d; }
        .row { display: flex; gap: 8px; align-items: center; flex-wrap: wrap; margin-bottom: 8px; }
        .btn { border: 1px solid #3a414b; background: #262c34; color: #e6e8ea; border-radius: 6px; padding: 6px 12px; font-size: 13px; cursor: pointer; }
        .btn:hover { background: #2e3640; }
        .btn.primary { background: #1e5c3a; border-color: #27774b; }
        .btn.danger { background: #5c1e24; border-color: #77272f; }
        .btn.small { padding: 3px 8px; font-size: 12px; }
        input[type=text], input[type=number] { background: #14171b; border: 1px solid #3a414b; color: #e6e8ea; border-radius: 6px; padding: 6px 8px; font-size: 13px; }
        input[type=text] { width: 100%; }
        #feed { width: 100%; border-radius: 6px; background: #000; display: block; }
        table { width: 100%; border-collapse: collapse; font-size: 12px; }
        th, td { text-align: left; padding: 4px 6px; border-bottom: 1px solid #2a2f37; }
        th { color: #8b939d; font-weight: 500; }
        .step { display: flex; gap: 6px; align-items: center; margin-bottom: 6px; }
        .step input[type=text] { flex: 1; }
        .step .img-tag { font-size: 11px; color: #7ee2a8; }
        .log { max-height: 260px; overflow-y: auto; font-size: 12px; }
        .log-item { padding: 6px 0; border-bottom: 1px solid #2a2f37; }
        .log-time { color: #8b939d; margin-right: 8px; }
        .log-item img { max-width: 100%; border-radius: 4px; margin-top: 4px; }
        .task-item { display: flex; justify-content: space-between; align-items: center; padding: 5px 0; border-bottom: 1px solid #2a2f37; font-size: 13px; }
        .muted { color: #8b939d; font-size: 12px; }
        .perf { font-size: 11px; color: #8b939d; margin-top: 6px; }
    </style>
</head>
<body>
    <div class="app">
        <div class="header">
            <div class="title">Camera Task Assistant</div>
            <div id="banner" class="banner"></div>
        </div>

        <div class="grid">
            <div class="panel" style="grid-row: span 2;">
                <h2>Live Feed</h2>
                <p class="panel-subtitle">Annotated stream with the latest detection boxes</p>
                <img id="feed" src="/stream" alt="Live camera feed">
                <div class="row" style="margin-top:10px;">
                    <button class="btn primary" onclick="webcam('start')">Start webcam</button>
                    <button class="btn" onclick="webcam('stop')">Stop webcam</button>
                    <button class="btn" onclick="webcam('switch')">Switch camera</button>
                    <span class="muted" id="webcam-state">inactive</span>
                </div>
                <div class="row">
                    <button class="btn primary" onclick="loop('tracking','start')">Start tracking</button>
                    <button class="btn" onclick="loop('tracking','stop')">Stop tracking</button>
                    <button class="btn primary" onclick="loop('detection','start')">Start detection</button>
                    <button class="btn" onclick="loop('detection','stop')">Stop detection</button>
                </div>
                <div class="row">
                    <label class="muted" for="interval">Capture interval (ms)</label>
                    <input type="number" id="interval" value="2000" min="500" max="10000" step="100" style="width:90px;">
                    <button class="btn small" onclick="setInterval_()">Apply</button>
                    <span class="muted" id="loop-state"></span>
                </div>

                <h2 style="margin-top:14px;">Detections</h2>
                <table>
                    <thead><tr><th>#</th><th>Class</th><th>Confidence</th><th>Box</th></tr></thead>
                    <tbody id="detections"><tr><td colspan="4" class="muted">none</td></tr></tbody>
                </table>
                <div class="perf" id="perf"></div>
            </div>

            <div class="panel">
                <h2>Task Editor</h2>
                <p class="panel-subtitle">Draft a task, then submit it as the active instruction set</p>
                <div class="row">
                    <input type="text" id="task-title" placeholder="Task title" onchange="setTitle(this.value)">
                </div>
                <div id="steps"></div>
                <div class="row">
                    <button class="btn small" onclick="addStep()">+ Add step</button>
                    <button class="btn primary" onclick="setupTask()">Use this task</button>
                    <button class="btn" onclick="saveTask()">Save to server</button>
                </div>
            </div>

            <div class="panel">
                <h2>Saved Tasks</h2>
                <p class="panel-subtitle">Server-persisted tasks and built-in templates</p>
                <div id="tasks"><span class="muted">loading...</span></div>
                <div class="row" style="margin-top:8px;">
                    <button class="btn small" onclick="loadTasks()">Refresh</button>
                    <button class="btn small danger" onclick="resetSession()">Reset session</button>
                </div>
                <div id="templates" style="margin-top:8px;"></div>
            </div>

            <div class="panel" style="grid-column: span 2;">
                <div class="row" style="justify-content:space-between;">
                    <h2 style="margin:0;">Responses</h2>
                    <button class="btn small" onclick="clearResponses()">Clear</button>
                </div>
                <div class="log" id="responses"><span class="muted">no responses yet</span></div>
            </div>
        </div>
    </div>

    <script>
        function banner(message, isError) {
            const el = document.getElementById('banner');
            el.textContent = message;
            el.className = 'banner ' + (isError ? 'err' : 'ok');
            clearTimeout(el._t);
            el._t = setTimeout(() => { el.className = 'banner'; }, 5000);
        }

        async function api(method, path, body) {
            const opts = { method };
            if (body !== undefined) {
                opts.headers = { 'Content-Type': 'application/json' };
                opts.body = JSON.stringify(body);
            }
            const resp = await fetch(path, opts);
            const data = await resp.json().catch(() => ({}));
            if (!resp.ok) {
                throw new Error(data.error || ('request failed (' + resp.status + ')'));
            }
            return data;
        }

        async function webcam(action) {
            try {
                const data = await api('POST', '/api/webcam/' + action, action === 'start' ? { facing: 'user' } : undefined);
                banner(data.message, false);
                refreshStatus();
            } catch (err) { banner(err.message, true); }
        }

        async function loop(name, action) {
            try {
                const data = await api('POST', '/api/' + name + '/' + action);
                banner(data.message, false);
                refreshStatus();
                if (name === 'detection' && action === 'stop') renderDetections({ objects: [] });
            } catch (err) { banner(err.message, true); }
        }

        async function setInterval_() {
            const ms = parseInt(document.getElementById('interval').value, 10);
            try {
                const data = await api('PUT', '/api/capture/interval', { interval_ms: ms });
                banner('interval set to ' + data.interval_ms + ' ms', false);
            } catch (err) { banner(err.message, true); }
        }

        // --- draft editor ---

        function renderDraft(draft) {
            document.getElementById('task-title').value = draft.title || '';
            const container = document.getElementById('steps');
            container.innerHTML = '';
            draft.steps.forEach((step, i) => {
                const row = document.createElement('div');
                row.className = 'step';
                const input = document.createElement('input');
                input.type = 'text';
                input.value = step.text;
                input.placeholder = 'Step ' + (i + 1);
                input.onchange = () => updateStep(step.id, input.value);
                row.appendChild(input);
                if (step.has_image) {
                    const tag = document.createElement('span');
                    tag.className = 'img-tag';
                    tag.textContent = 'img';
                    tag.title = 'Remove attached image';
                    tag.style.cursor = 'pointer';
                    tag.onclick = () => removeImage(step.id);
                    row.appendChild(tag);
                }
                const attach = document.createElement('button');
                attach.className = 'btn small';
                attach.textContent = 'img';
                attach.onclick = () => pickImage(step.id);
                row.appendChild(attach);
                const del = document.createElement('button');
                del.className = 'btn small danger';
                del.textContent = 'x';
                del.onclick = () => removeStep(step.id);
                row.appendChild(del);
                container.appendChild(row);
            });
        }

        async function loadDraft() {
            try { renderDraft(await api('GET', '/api/draft')); }
            catch (err) { banner(err.message, true); }
        }

        async function setTitle(title) {
            try { renderDraft(await api('PUT', '/api/draft/title', { title })); }
            catch (err) { banner(err.message, true); }
        }

        async function addStep() {
            try { renderDraft((await api('POST', '/api/draft/steps')).draft); }
            catch (err) { banner(err.message, true); }
        }

        async function updateStep(id, text) {
            try { renderDraft(await api('PUT', '/api/draft/steps/' + id, { text })); }
            catch (err) { banner(err.message, true); }
        }

        async function removeStep(id) {
            try { renderDraft(await api('DELETE', '/api/draft/steps/' + id)); }
            catch (err) { banner(err.message, true); }
        }

        function pickImage(id) {
            const input = document.createElement('input');
            input.type = 'file';
            input.accept = 'image/*';
            input.onchange = async () => {
                if (!input.files.length) return;
                const form = new FormData();
                form.append('image', input.files[0]);
                const resp = await fetch('/api/draft/steps/' + id + '/image', { method: 'POST', body: form });
                const data = await resp.json().catch(() => ({}));
                if (!resp.ok) { banner(data.error || 'upload failed', true); return; }
                renderDraft(data);
            };
            input.click();
        }

        async function removeImage(id) {
            try { renderDraft(await api('DELETE', '/api/draft/steps/' + id + '/image')); }
            catch (err) { banner(err.message, true); }
        }

        async function setupTask() {
            try {
                const data = await api('POST', '/api/draft/setup');
                banner(data.message, false);
            } catch (err) { banner(err.message, true); }
        }

        async function saveTask() {
            try {
                const data = await api('POST', '/api/tasks');
                banner('task saved', false);
                renderTasks(data.tasks);
            } catch (err) { banner(err.message, true); }
        }

        // --- saved tasks and templates ---

        function renderTasks(tasks) {
            const container = document.getElementById('tasks');
            container.innerHTML = '';
            if (!tasks.length) {
                container.innerHTML = '<span class="muted">no saved tasks</span>';
                return;
            }
            tasks.forEach(t => {
                const row = document.createElement('div');
                row.className = 'task-item';
                const name = document.createElement('span');
                name.textContent = t.title + ' (' + t.steps.length + ' steps)';
                row.appendChild(name);
                const btns = document.createElement('span');
                const load = document.createElement('button');
                load.className = 'btn small';
                load.textContent = 'Load';
                load.onclick = async () => {
                    try { renderDraft(await api('POST', '/api/draft/load', { title: t.title, steps: t.steps })); }
                    catch (err) { banner(err.message, true); }
                };
                btns.appendChild(load);
                const del = document.createElement('button');
                del.className = 'btn small danger';
                del.style.marginLeft = '6px';
                del.textContent = 'Delete';
                del.onclick = async () => {
                    try { await api('DELETE', '/api/tasks/' + t.id); loadTasks(); }
                    catch (err) { banner(err.message, true); }
                };
                btns.appendChild(del);
                row.appendChild(btns);
                container.appendChild(row);
            });
        }

        async function loadTasks() {
            try { renderTasks((await api('GET', '/api/tasks')).tasks); }
            catch (err) {
                document.getElementById('tasks').innerHTML = '<span class="muted">service unavailable</span>';
            }
        }

        async function loadTemplates() {
            try {
                const data = await api('GET', '/api/templates');
                const container = document.getElementById('templates');
                container.innerHTML = '<span class="muted">Templates:</span> ';
                data.templates.forEach(t => {
                    const btn = document.createElement('button');
                    btn.className = 'btn small';
                    btn.style.marginRight = '6px';
                    btn.textContent = t.title;
                    btn.onclick = async () => {
                        try { renderDraft(await api('POST', '/api/draft/load', { template_id: t.id })); }
                        catch (err) { banner(err.message, true); }
                    };
                    container.appendChild(btn);
                });
            } catch (err) { /* templates are optional decoration */ }
        }

        async function resetSession() {
            try {
                const data = await api('POST', '/api/reset');
                banner(data.message, false);
            } catch (err) { banner(err.message, true); }
        }

        // --- detections ---

        function renderDetections(data) {
            const tbody = document.getElementById('detections');
            tbody.innerHTML = '';
            if (!data.objects || !data.objects.length) {
                tbody.innerHTML = '<tr><td colspan="4" class="muted">none</td></tr>';
            } else {
                data.objects.forEach(obj => {
                    const tr = document.createElement('tr');
                    const box = obj.box;
                    tr.innerHTML = '<td>' + obj.id + '</td><td>' + (obj.class || 'Object') + '</td><td>' +
                        (obj.confidence * 100).toFixed(0) + '%</td><td>' +
                        [box.x1, box.y1, box.x2, box.y2].map(v => v.toFixed(0)).join(', ') + '</td>';
                    tbody.appendChild(tr);
                });
            }
            const perf = document.getElementById('perf');
            const m = data.performance_metrics;
            if (m) {
                const parts = [];
                if (m.preprocess_ms != null) parts.push('pre ' + m.preprocess_ms.toFixed(1) + 'ms');
                if (m.inference_ms != null) parts.push('inf ' + m.inference_ms.toFixed(1) + 'ms');
                if (m.postprocess_ms != null) parts.push('post ' + m.postprocess_ms.toFixed(1) + 'ms');
                if (m.image_shape) parts.push('shape (' + m.image_shape + ')');
                perf.textContent = parts.join(' / ');
            } else {
                perf.textContent = '';
            }
        }

        async function pollDetections() {
            try { renderDetections(await api('GET', '/api/detections')); } catch (err) { /* transient */ }
        }

        // --- responses ---

        function responseNode(item) {
            const div = document.createElement('div');
            div.className = 'log-item';
            const time = document.createElement('span');
            time.className = 'log-time';
            time.textContent = item.timestamp;
            div.appendChild(time);
            const text = document.createElement('span');
            text.textContent = item.text || '';
            div.appendChild(text);
            if (item.image_url) {
                const img = document.createElement('img');
                img.src = item.image_url;
                div.appendChild(img);
            }
            return div;
        }

        async function loadResponses() {
            try {
                const data = await api('GET', '/api/responses');
                const container = document.getElementById('responses');
                container.innerHTML = '';
                if (!data.responses.length) {
                    container.innerHTML = '<span class="muted">no responses yet</span>';
                    return;
                }
                data.responses.forEach(item => container.appendChild(responseNode(item)));
            } catch (err) { /* transient */ }
        }

        async function clearResponses() {
            try { await api('DELETE', '/api/responses'); loadResponses(); }
            catch (err) { banner(err.message, true); }
        }

        function subscribeResponses() {
            const source = new EventSource('/api/responses/stream');
            source.onmessage = (event) => {
                const item = JSON.parse(event.data);
                const container = document.getElementById('responses');
                if (container.firstChild && container.firstChild.className !== 'log-item') {
                    container.innerHTML = '';
                }
                container.insertBefore(responseNode(item), container.firstChild);
            };
            source.onerror = () => {
                source.close();
                setTimeout(subscribeResponses, 3000);
            };
        }

        // --- status ---

        async function refreshStatus() {
            try {
                const data = await api('GET', '/api/status');
                const cam = data.webcam;
                document.getElementById('webcam-state').textContent = cam.active
                    ? 'active (' + cam.facing + ', ' + cam.width + 'x' + cam.height + ')'
                    : 'inactive';
                const parts = [];
                if (data.tracking.running) parts.push('tracking every ' + data.tracking.interval_ms + 'ms');
                if (data.detection.running) parts.push('detection every ' + data.detection.interval_ms + 'ms');
                document.getElementById('loop-state').textContent = parts.join(', ');
            } catch (err) { /* transient */ }
        }

        loadDraft();
        loadTasks();
        loadTemplates();
        loadResponses();
        subscribeResponses();
        refreshStatus();
        window.setInterval(refreshStatus, 3000);
        window.setInterval(pollDetections, 1000);
    </script>
</body>
</html>
`
